package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExhausted is returned when a placement finds no empty cell.
	ErrCapacityExhausted = errors.New("grid capacity exhausted")

	// ErrInvariantViolation marks a broken single-mutator discipline: a relocation
	// into an occupied cell or an illegal health transition. It is not recoverable.
	ErrInvariantViolation = errors.New("simulation invariant violated")

	// ErrInvalidConfig is the root of every configuration error.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ConfigError names the offending configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func configErr(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
