package routing

import (
	"fmt"
	"strings"

	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services"
)

// UnknownProfileError is returned when a call names a profile that does not exist
type UnknownProfileError struct {
	Profile   string
	Available []string
}

func (e *UnknownProfileError) Error() string {
	return fmt.Sprintf("unknown profile '%s', available: %s", e.Profile, strings.Join(e.Available, ", "))
}

// Unwrap exposes the error as a not_found DomainError wrapping services.ErrProfileNotFound
func (e *UnknownProfileError) Unwrap() error {
	return services.NewDomainError(services.ErrorTypeNotFound, e.Error(), services.ErrProfileNotFound).
		WithDetail("profile", e.Profile).
		WithDetail("available", e.Available)
}

// ExhaustedError is returned when no candidate in the profile served the call.
// Attempts lists every evaluated candidate in cascade order.
type ExhaustedError struct {
	Profile  string
	Attempts []models.Attempt
}

func (e *ExhaustedError) Error() string {
	tried := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		tried[i] = a.Provider
	}
	return fmt.Sprintf("all providers exhausted for profile '%s', tried: %s", e.Profile, strings.Join(tried, ", "))
}

// Unwrap exposes the error as an unavailable DomainError carrying the attempts
func (e *ExhaustedError) Unwrap() error {
	return services.NewDomainError(services.ErrorTypeUnavailable, e.Error(), nil).
		WithDetail("profile", e.Profile).
		WithDetail("attempts", e.Attempts)
}
