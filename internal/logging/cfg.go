package logging

import "go.uber.org/zap/zapcore"

// Config is the configuration for the logging subsystem.
type Config struct {
	// Level is the logging level.
	Level zapcore.Level `toml:"level"`
	// File, if non-empty, additionally writes rotated logs there via
	// lumberjack; stderr is always written regardless.
	File string `toml:"file"`
	// MaxSizeMB is the rotation threshold for File.
	MaxSizeMB int `toml:"max_size_mb"`
	// MaxBackups caps how many rotated files are kept.
	MaxBackups int `toml:"max_backups"`
	// MaxAgeDays caps how long rotated files are kept.
	MaxAgeDays int `toml:"max_age_days"`
}

// DefaultConfig returns the logging defaults used when a Kaze config omits
// the [log] section.
func DefaultConfig() Config {
	return Config{
		Level:      zapcore.InfoLevel,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 14,
	}
}
