package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/relaymesh/tunnelmgr/internal/manager"
)

// Config wraps a viper instance and provides typed accessors for
// every configuration key.
type Config struct {
	v *viper.Viper
}

// New initialises a Config by loading values from environment
// variables, the config file, and compiled defaults (in that priority
// order; CLI flags, bound later via BindFlags, take highest
// priority).
func New() (*Config, error) {
	v := viper.New()

	for _, o := range Options {
		v.SetDefault(o.Key, o.Default)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/tunnelmgr/")

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("TUNNELMGR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}, nil
}

// BindFlags registers CLI flags for Options and binds them to the
// underlying viper keys so that flag values override file and
// environment sources.
func (c *Config) BindFlags(fs *pflag.FlagSet) error {
	for _, o := range Options {
		switch v := o.Default.(type) {
		case string:
			fs.String(o.Flag, v, o.Description)
		case int:
			fs.Int(o.Flag, v, o.Description)
		case bool:
			fs.Bool(o.Flag, v, o.Description)
		case float64:
			fs.Float64(o.Flag, v, o.Description)
		case []string:
			fs.StringSlice(o.Flag, v, o.Description)
		case time.Duration:
			fs.Duration(o.Flag, v, o.Description)
		default:
			return fmt.Errorf("unsupported flag type for key: %s", o.Key)
		}

		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", o.Flag, err)
		}
	}

	return nil
}

// CachePath returns the path to the tunnel cache file.
func (c *Config) CachePath() string { return c.v.GetString(keyCachePath) }

// MetricsAddress returns the listen address for the metrics endpoint.
func (c *Config) MetricsAddress() string { return c.v.GetString(keyMetricsAddress) }

// ManagerConfig translates the loaded values into a manager.Config,
// the form the tunnel manager core actually consumes.
func (c *Config) ManagerConfig() manager.Config {
	return manager.Config{
		CachePath:             c.v.GetString(keyCachePath),
		MaxInitOpen:           c.v.GetInt(keyMaxInitOpen),
		MaxRetries:            c.v.GetInt(keyMaxRetries),
		HistorySize:           c.v.GetInt(keyHistorySize),
		ActivateBase:          c.v.GetDuration(keyActivateBase),
		ActivateJitter:        c.v.GetDuration(keyActivateJitter),
		ActivateMultiplier:    int64(c.v.GetInt(keyActivateMultiplier)),
		ActivateScanInterval:  c.v.GetDuration(keyActivateScanPeriod),
		ActivateScanJitter:    c.v.GetDuration(keyActivateScanJitter),
		ReconnectPollInterval: c.v.GetDuration(keyReconnectPollPeriod),
		ReconnectPollJitter:   c.v.GetDuration(keyReconnectPollJitter),
		PunishFactor:          c.v.GetFloat64(keyPunishFactor),
		RewardFactor:          c.v.GetFloat64(keyRewardFactor),
		ConfiguredMTU:         c.v.GetInt(keyConfiguredMTU),
	}
}
