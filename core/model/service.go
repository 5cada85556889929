package model

import "fmt"

// ServiceType identifies the kind of intervention a booking requests.
type ServiceType string

const (
	ServiceInstallation ServiceType = "installation"
	ServiceMaintenance  ServiceType = "maintenance"
	ServiceRepair       ServiceType = "repair"
	ServiceInspection   ServiceType = "inspection"
)

// AllServiceTypes returns every service type in a stable order.
func AllServiceTypes() []ServiceType {
	return []ServiceType{ServiceInstallation, ServiceMaintenance, ServiceRepair, ServiceInspection}
}

// Valid reports whether t is a known service type.
func (t ServiceType) Valid() bool {
	switch t {
	case ServiceInstallation, ServiceMaintenance, ServiceRepair, ServiceInspection:
		return true
	}
	return false
}

// Complexity classifies a booking and drives the minimum technician level
// and the team size needed to perform it.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
	ComplexityExpert   Complexity = "expert"
)

// Valid reports whether c is a known complexity class.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex, ComplexityExpert:
		return true
	}
	return false
}

// MinLevel returns the lowest technician level allowed to take the job.
func (c Complexity) MinLevel() Level {
	switch c {
	case ComplexityModerate:
		return LevelTechnician
	case ComplexityComplex:
		return LevelSenior
	case ComplexityExpert:
		return LevelLead
	default:
		return LevelJunior
	}
}

// TeamSize returns the number of people a job of this class calls for.
func (c Complexity) TeamSize() int {
	switch c {
	case ComplexityComplex:
		return 2
	case ComplexityExpert:
		return 3
	default:
		return 1
	}
}

// ParseComplexity converts s into a Complexity.
func ParseComplexity(s string) (Complexity, error) {
	c := Complexity(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown complexity %q", s)
	}
	return c, nil
}
