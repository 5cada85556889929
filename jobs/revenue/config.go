package revenue

import "fmt"

// MaxBatchSize is the largest number of day writes committed at once.
const MaxBatchSize = 400

// Default product list sizes.
const (
	DefaultTopN         = 10
	DefaultAllTimeLimit = 20
)

// Config controls aggregation output and batching. TopN and AllTimeLimit are
// nil when unset; an explicit 0 keeps every product.
type Config struct {
	TopN         *int `json:"top_n"`
	AllTimeLimit *int `json:"all_time_limit"`
	BatchSize    int  `json:"batch_size"`
}

// SetDefaults fills unset fields and caps the batch size.
func (c *Config) SetDefaults() {
	if c.TopN == nil {
		n := DefaultTopN
		c.TopN = &n
	}
	if c.AllTimeLimit == nil {
		n := DefaultAllTimeLimit
		c.AllTimeLimit = &n
	}
	if c.BatchSize == 0 || c.BatchSize > MaxBatchSize {
		c.BatchSize = MaxBatchSize
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Top() < 0 || c.AllTime() < 0 {
		return fmt.Errorf("aggregation.top_n and aggregation.all_time_limit must be >= 0")
	}
	if c.BatchSize <= 0 || c.BatchSize > MaxBatchSize {
		return fmt.Errorf("aggregation.batch_size must be in 1..%d", MaxBatchSize)
	}
	return nil
}

// Top is the daily product list size.
func (c Config) Top() int { return intOr(c.TopN, DefaultTopN) }

// AllTime is the all-time product list size.
func (c Config) AllTime() int { return intOr(c.AllTimeLimit, DefaultAllTimeLimit) }

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
