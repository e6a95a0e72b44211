package config

import (
	"strings"
	"time"
)

// Option describes a single configuration entry: its viper key, the
// corresponding CLI flag name, the compiled default, and a
// human-readable description shown in --help output.
type Option struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

// Options defines every configuration entry the tunnel manager
// daemon accepts. Each entry is registered as a viper default and a
// CLI flag.
var Options = []Option{
	{Key: keyCachePath, Flag: toFlag(keyCachePath), Default: "/var/lib/tunnelmgr/tunnels.cache", Description: "Path to the tunnel cache file"},

	{Key: keyMaxInitOpen, Flag: toFlag(keyMaxInitOpen), Default: 8, Description: "Target size of the active tunnel set"},
	{Key: keyMaxRetries, Flag: toFlag(keyMaxRetries), Default: 3, Description: "Open attempts per activation before marking a tunnel dead"},
	{Key: keyHistorySize, Flag: toFlag(keyHistorySize), Default: 1024, Description: "Number of slots in the flow-history table"},

	{Key: keyActivateBase, Flag: toFlag(keyActivateBase), Default: 10 * time.Second, Description: "Base delay of the per-tunnel activation backoff"},
	{Key: keyActivateJitter, Flag: toFlag(keyActivateJitter), Default: 1 * time.Second, Description: "Jitter window added to the activation backoff"},
	{Key: keyActivateMultiplier, Flag: toFlag(keyActivateMultiplier), Default: 6, Description: "Multiplier applied to the activation backoff on each retry"},
	{Key: keyActivateScanPeriod, Flag: toFlag(keyActivateScanPeriod), Default: 150 * time.Second, Description: "Interval between activate-manager scans of the cache"},
	{Key: keyActivateScanJitter, Flag: toFlag(keyActivateScanJitter), Default: 10 * time.Second, Description: "Stagger window added to the activate-manager scan interval"},

	{Key: keyReconnectPollPeriod, Flag: toFlag(keyReconnectPollPeriod), Default: 1 * time.Second, Description: "Interval between reconnect-controller polls of the active set"},
	{Key: keyReconnectPollJitter, Flag: toFlag(keyReconnectPollJitter), Default: 1 * time.Second, Description: "Jitter window added to the reconnect poll interval"},

	{Key: keyPunishFactor, Flag: toFlag(keyPunishFactor), Default: 0.75, Description: "Weight multiplier applied to a tunnel on a retransmit collision"},
	{Key: keyRewardFactor, Flag: toFlag(keyRewardFactor), Default: 1.15, Description: "Weight multiplier applied to the selected tunnel"},

	{Key: keyConfiguredMTU, Flag: toFlag(keyConfiguredMTU), Default: 1500, Description: "Locally configured MTU passed to the driver"},

	{Key: keyMetricsAddress, Flag: toFlag(keyMetricsAddress), Default: ":9090", Description: "Listen address for the Prometheus metrics endpoint"},
}

// toFlag converts a viper key like "activate.scan_period" into a CLI
// flag like "activate-scan-period" by lower-casing and replacing dots
// and underscores with hyphens.
func toFlag(key string) string {
	flag := strings.ToLower(key)
	flag = strings.ReplaceAll(flag, ".", "-")
	flag = strings.ReplaceAll(flag, "_", "-")
	return flag
}
