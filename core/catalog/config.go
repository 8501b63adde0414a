package catalog

// Config holds the local library settings.
type Config struct {
	// Root is the library directory; category directories sit directly below.
	Root string `mapstructure:"root" default:"books"`
	// Category restricts every scan to one category directory.
	Category string `mapstructure:"category" default:""`
}
