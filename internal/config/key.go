// Package config provides unified configuration loading from files,
// environment variables, and CLI flags using viper and pflag.
// Resolution order:
//  1. CLI flags
//  2. Environment variables (prefix TUNNELMGR_)
//  3. Config file (config.yaml in . or /etc/tunnelmgr/)
//  4. Compiled defaults
package config

// Viper keys for the tunnel manager's tunables.
const (
	keyCachePath = "cache.path"

	keyMaxInitOpen = "manager.max_init_open"
	keyMaxRetries  = "manager.max_retries"
	keyHistorySize = "manager.history_size"

	keyActivateBase       = "activate.base_delay"
	keyActivateJitter     = "activate.jitter"
	keyActivateMultiplier = "activate.multiplier"
	keyActivateScanPeriod = "activate.scan_period"
	keyActivateScanJitter = "activate.scan_jitter"

	keyReconnectPollPeriod = "reconnect.poll_period"
	keyReconnectPollJitter = "reconnect.poll_jitter"

	keyPunishFactor = "selector.punish_factor"
	keyRewardFactor = "selector.reward_factor"

	keyConfiguredMTU = "tunnel.mtu"

	keyMetricsAddress = "metrics.address"
)
