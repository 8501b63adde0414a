package index

import "time"

// Config holds the channel index settings.
type Config struct {
	// Path is the index file.
	Path string `mapstructure:"path" default:"data/channel_index.json"`
	// LockTimeout bounds the wait for another writer to release the index.
	LockTimeout time.Duration `mapstructure:"lock_timeout" default:"30s"`
}
