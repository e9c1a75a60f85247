package model

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched by every ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports an invalid topology, size, degree, or
// sampling request. It is fatal and surfaced at construction.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// Configf builds a ConfigurationError for the named field.
func Configf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DegenerateStateWarning lists agents that ended up with no neighbors.
// Their payoff is always 0 and they never change strategy.
type DegenerateStateWarning struct {
	Isolated []int
}

func (w *DegenerateStateWarning) Error() string {
	return fmt.Sprintf("degenerate topology: %d agent(s) without neighbors", len(w.Isolated))
}
