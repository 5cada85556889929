package config

import (
	"fmt"
)

// LoggingConfig defines settings for the dispatch decision log store and
// its rotation. It is decoded from the decision_log plugin conf.
type LoggingConfig struct {
	// Path is the file location of the log store.
	Path string `json:"path" mapstructure:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in
	// megabytes. Zero disables rotation.
	MaxSizeMB int `json:"max_size_mb" mapstructure:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups" mapstructure:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days" mapstructure:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "dispatch.log"
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("rotation limits must be >= 0")
	}
	return nil
}
