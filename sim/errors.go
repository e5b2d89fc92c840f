package sim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ErrAlreadyStarted is returned by Engine.Start when the engine has left Idle.
var ErrAlreadyStarted = errors.New("engine already started")

// ConfigurationError reports every violated constraint of a Config.
// It is the only error an Engine can produce from a simulation standpoint;
// packet loss is a counted outcome, never an error.
type ConfigurationError struct {
	violations *multierror.Error
}

func newConfigurationError(violations *multierror.Error) *ConfigurationError {
	violations.ErrorFormat = listViolations
	return &ConfigurationError{violations: violations}
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + e.violations.Error()
}

// Unwrap exposes the accumulated violations to errors.Is / errors.As.
func (e *ConfigurationError) Unwrap() error {
	return e.violations
}

// Violations returns each violated constraint.
func (e *ConfigurationError) Violations() []error {
	return e.violations.WrappedErrors()
}

func listViolations(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	if len(msgs) == 1 {
		return msgs[0]
	}
	return fmt.Sprintf("%d violations: %s", len(msgs), strings.Join(msgs, "; "))
}
