package model

import (
	"fmt"
	"strings"
)

// Level is the seniority of a technician. Levels are ordered so they can be
// compared directly.
type Level int

const (
	LevelUnknown Level = iota
	LevelTrainee
	LevelJunior
	LevelTechnician
	LevelSenior
	LevelLead
	LevelSupervisor
)

var levelNames = map[Level]string{
	LevelTrainee:    "trainee",
	LevelJunior:     "junior",
	LevelTechnician: "technician",
	LevelSenior:     "senior",
	LevelLead:       "lead",
	LevelSupervisor: "supervisor",
}

// String returns the lower-case name of the level.
func (l Level) String() string {
	if n, ok := levelNames[l]; ok {
		return n
	}
	return "unknown"
}

// AtLeast reports whether l is greater than or equal to min.
func (l Level) AtLeast(min Level) bool { return l >= min }

// ParseLevel converts a level name into a Level. Matching is case-insensitive.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for l, n := range levelNames {
		if n == s {
			return l, nil
		}
	}
	return LevelUnknown, fmt.Errorf("unknown level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if l == LevelUnknown {
		return nil, fmt.Errorf("cannot marshal unknown level")
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Availability is the dispatch status of a technician.
type Availability string

const (
	Available   Availability = "available"
	Busy        Availability = "busy"
	Unavailable Availability = "unavailable"
	Emergency   Availability = "emergency"
)

// Valid reports whether a is a known availability status.
func (a Availability) Valid() bool {
	switch a {
	case Available, Busy, Unavailable, Emergency:
		return true
	}
	return false
}
