package convert

import (
	"errors"
)

var (
	// ErrRuntimeNotFound is returned when a conversion tool is not installed
	ErrRuntimeNotFound = errors.New("runtime not found")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")
)

// ConfigError is returned for invalid tool configuration
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}
