package settlement

import "fmt"

// Commission roles used by SplitTeamPayout.
const (
	RoleLead       = "lead"
	RoleSenior     = "senior"
	RoleTechnician = "technician"
	RoleJunior     = "junior"
	RoleTrainee    = "trainee"
)

// DefaultPlatformCommissionRate applies when no rate is configured.
const DefaultPlatformCommissionRate = 0.10

// Config holds the platform rate and the per-role commission weights. A nil
// rate means unset; an explicit 0 is a valid commission-free setup.
type Config struct {
	PlatformCommissionRate *float64           `json:"platform_commission_rate"`
	RoleWeights            map[string]float64 `json:"role_weights"`
}

// DefaultRoleWeights returns the standard weight table.
func DefaultRoleWeights() map[string]float64 {
	return map[string]float64{
		RoleLead:       0.40,
		RoleSenior:     0.30,
		RoleTechnician: 0.25,
		RoleJunior:     0.20,
		RoleTrainee:    0.10,
	}
}

// SetDefaults fills unset fields. Missing roles get their default weight.
func (c *Config) SetDefaults() {
	if c.PlatformCommissionRate == nil {
		r := DefaultPlatformCommissionRate
		c.PlatformCommissionRate = &r
	}
	if c.RoleWeights == nil {
		c.RoleWeights = map[string]float64{}
	}
	for role, w := range DefaultRoleWeights() {
		if _, ok := c.RoleWeights[role]; !ok {
			c.RoleWeights[role] = w
		}
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if r := c.Rate(); r < 0 || r >= 1 {
		return fmt.Errorf("settlement.platform_commission_rate must be in [0,1)")
	}
	for role, w := range c.RoleWeights {
		if w <= 0 {
			return fmt.Errorf("settlement.role_weights.%s must be > 0", role)
		}
	}
	return nil
}

// TechnicianPayoutRate is the share of a price that reaches technicians.
func (c Config) TechnicianPayoutRate() float64 {
	return 1 - c.Rate()
}

// Rate returns the platform commission rate, or the default when unset.
func (c Config) Rate() float64 {
	if c.PlatformCommissionRate == nil {
		return DefaultPlatformCommissionRate
	}
	return *c.PlatformCommissionRate
}

// WithRate returns a copy of c using rate.
func (c Config) WithRate(rate float64) Config {
	c.PlatformCommissionRate = &rate
	return c
}
