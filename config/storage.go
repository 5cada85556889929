package config

import "fmt"

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// StorageConfig selects where bookings, the directory, pricing and
// aggregates are kept.
type StorageConfig struct {
	Backend string `json:"backend"`
	// Path is the SQLite database file.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.Backend == BackendSQLite && c.Path == "" {
		c.Path = "fieldops.db"
	}
}

// Validate checks mandatory fields.
func (c StorageConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendSQLite:
		if c.Path == "" {
			return fmt.Errorf("storage.path is required for sqlite")
		}
		return nil
	}
	return fmt.Errorf("unknown storage backend %s", c.Backend)
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	PrometheusEnabled bool `json:"prometheus_enabled"`
	PrometheusPort    int  `json:"prometheus_port"`
}

// SetDefaults applies sane defaults.
func (c *MetricsConfig) SetDefaults() {
	if c.PrometheusPort == 0 {
		c.PrometheusPort = 2112
	}
}

// Validate checks the port range.
func (c MetricsConfig) Validate() error {
	if c.PrometheusPort < 0 || c.PrometheusPort > 65535 {
		return fmt.Errorf("metrics.prometheus_port out of range: %d", c.PrometheusPort)
	}
	return nil
}
