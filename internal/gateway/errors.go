package gateway

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownRoute     = errors.New("unknown route")
	ErrProviderNotFound = errors.New("provider not found")
	ErrGenerationFailed = errors.New("generation failed")
)

// ProviderFailure is one failed attempt. Position is 1 for the primary.
type ProviderFailure struct {
	Provider string
	Position int
	Err      error
}

func (f *ProviderFailure) Error() string {
	return fmt.Sprintf("attempt %d (%s): %v", f.Position, f.Provider, f.Err)
}

func (f *ProviderFailure) Unwrap() error { return f.Err }

// AllProvidersFailedError is returned when every attempt of a route failed.
// Failures are in attempt order.
type AllProvidersFailedError struct {
	Route    string
	Failures []ProviderFailure
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i := range e.Failures {
		parts[i] = e.Failures[i].Error()
	}
	return fmt.Sprintf("all providers failed for route %q: %s", e.Route, strings.Join(parts, "; "))
}

func (e *AllProvidersFailedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i := range e.Failures {
		errs[i] = &e.Failures[i]
	}
	return errs
}
