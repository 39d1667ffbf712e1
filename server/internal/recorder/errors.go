package recorder

import (
	"errors"
	"fmt"
)

// ErrNotConfigured matches every *ConfigError via errors.Is.
var ErrNotConfigured = errors.New("not configured")

// ConfigError reports a required setting that is absent.
type ConfigError struct {
	Setting string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s is not set", e.Setting)
}

func (e *ConfigError) Is(target error) bool { return target == ErrNotConfigured }

// ProbeError reports a probe that never reached the target.
type ProbeError struct {
	Err error
}

func (e *ProbeError) Error() string { return "execution failure: " + e.Err.Error() }

func (e *ProbeError) Unwrap() error { return e.Err }

// StoreError reports a failed retention log operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
