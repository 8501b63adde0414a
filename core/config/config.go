package config

import (
	"reflect"
	"strings"

	"channel-publisher/core/catalog"
	"channel-publisher/core/database"
	"channel-publisher/core/index"
	"channel-publisher/core/logger"
	"channel-publisher/core/server"
	"channel-publisher/core/storage"
	"channel-publisher/core/telegram"
	"channel-publisher/feature/channelsync"
	"channel-publisher/feature/upload"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Each section is owned by the package that consumes it.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the published-titles ledger.
	Database database.Config `mapstructure:"database"`
	// Storage holds configuration for index snapshots in object storage.
	Storage storage.Config `mapstructure:"storage"`
	// Telegram holds the bot credentials and the target channel.
	Telegram telegram.Config `mapstructure:"telegram"`
	// Library locates the local book collection.
	Library catalog.Config `mapstructure:"library"`
	// Index locates the channel index file.
	Index index.Config `mapstructure:"index"`
	// Upload tunes pacing and retries of uploads.
	Upload upload.Config `mapstructure:"upload"`
	// Sync tunes channel history synchronization.
	Sync channelsync.Config `mapstructure:"sync"`
}

// LoadConfig loads configuration from environment variables and the .env
// file in path.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. TELEGRAM_TOKEN -> telegram.token)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
