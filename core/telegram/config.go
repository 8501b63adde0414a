package telegram

import "time"

// Config holds the channel client settings.
type Config struct {
	// Token is the bot token. Never logged.
	Token string `mapstructure:"token" default:""`
	// Channel is the publishing channel (@name, t.me link or numeric id).
	Channel string `mapstructure:"channel" default:""`
	// AdminChat receives progress notifications when set.
	AdminChat string `mapstructure:"admin_chat" default:""`
	// APIURL is the Bot API base URL.
	APIURL string `mapstructure:"api_url" default:"https://api.telegram.org"`
	// PreviewURL is the base URL of the public channel preview.
	PreviewURL string `mapstructure:"preview_url" default:"https://t.me"`
	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration `mapstructure:"timeout" default:"60s"`
}
