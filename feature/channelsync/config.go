package channelsync

import (
	"time"

	"channel-publisher/core/retry"
)

// Config holds synchronizer settings.
type Config struct {
	// Interval is the period of the background incremental sync run by the
	// server. 0 disables it.
	Interval time.Duration `mapstructure:"interval" default:"5m"`
	// PagePause is the pause between two history pages.
	PagePause time.Duration `mapstructure:"page_pause" default:"1s"`
	// MaxPages bounds the pages fetched per sync; 0 means no bound.
	MaxPages int `mapstructure:"max_pages" default:"0"`
	// Retry governs each page fetch.
	Retry retry.Policy `mapstructure:"retry"`
}
