package outbox

import (
	"time"

	"github.com/smallbiznis/qalam/internal/config"
)

// Config controls dispatcher polling, batching and retry limits.
type Config struct {
	PollInterval        time.Duration
	BatchSize           int
	MaxAttempts         int
	StaleClaimThreshold time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:        5 * time.Second,
		BatchSize:           50,
		MaxAttempts:         5,
		StaleClaimThreshold: 15 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.StaleClaimThreshold <= 0 {
		c.StaleClaimThreshold = defaults.StaleClaimThreshold
	}
	return c
}

func ProvideConfig(appCfg config.Config) Config {
	return Config{
		PollInterval:        appCfg.OutboxPollInterval,
		BatchSize:           appCfg.OutboxBatchSize,
		MaxAttempts:         appCfg.OutboxMaxAttempts,
		StaleClaimThreshold: appCfg.OutboxStaleClaimThreshold,
	}.withDefaults()
}
