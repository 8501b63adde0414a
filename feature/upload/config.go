package upload

import (
	"time"

	"channel-publisher/core/retry"
)

// Config holds upload settings.
type Config struct {
	// MinInterval is the minimum spacing between two sends.
	MinInterval time.Duration `mapstructure:"min_interval" default:"3s"`
	// FloodCooldown is the extra wait before the next task after a flood-wait.
	FloodCooldown time.Duration `mapstructure:"flood_cooldown" default:"15s"`
	// AfterRetryDelay is the wait before the next task after a task needed retries.
	AfterRetryDelay time.Duration `mapstructure:"after_retry_delay" default:"5s"`
	// SendTimeout bounds a single send.
	SendTimeout time.Duration `mapstructure:"send_timeout" default:"60s"`
	// Retry governs each send and the connectivity check.
	Retry retry.Policy `mapstructure:"retry"`
}
