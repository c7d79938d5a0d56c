package history

import "time"

// Config holds configuration for the history plugin.
type Config struct {
	Retention           time.Duration `mapstructure:"retention"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
	// IncludeHidden records networks whose SSID was never resolved.
	IncludeHidden bool `mapstructure:"include_hidden"`
}

// DefaultConfig returns the defaults: a week of sightings, pruned hourly.
func DefaultConfig() Config {
	return Config{
		Retention:           7 * 24 * time.Hour,
		MaintenanceInterval: time.Hour,
		IncludeHidden:       true,
	}
}
