package config

import (
	"errors"
	"strings"
)

// ErrInvalidConfig indicates a setting is present but unusable.
var ErrInvalidConfig = errors.New("invalid configuration")

// MissingConfigError names every required key that was absent or empty.
type MissingConfigError struct {
	Keys []string
}

func (e *MissingConfigError) Error() string {
	return "missing required configuration: " + strings.Join(e.Keys, ", ")
}
