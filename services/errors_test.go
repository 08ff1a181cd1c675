package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "profile not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "profile not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeUnauthorized,
				Message: "authentication token expired",
				Err:     errors.New("token is expired"),
			},
			wantMsg: "unauthorized: authentication token expired (token is expired)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeUnavailable,
				Message: "all providers exhausted",
			},
			wantMsg: "unavailable: all providers exhausted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same error type", NewDomainError(ErrorTypeNotFound, "nope", nil), ErrProfileNotFound, true},
		{"different error type", NewDomainError(ErrorTypeValidation, "bad", nil), ErrProfileNotFound, false},
		{"not a domain error", NewDomainError(ErrorTypeNotFound, "nope", nil), errors.New("plain"), false},
		{"wrapped unavailable", fmt.Errorf("call: %w", NewDomainError(ErrorTypeUnavailable, "x", nil)), ErrProvidersExhausted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeUnavailable, "exhausted", nil)

	err.WithDetail("profile", "free-only").WithDetail("attempts", 3)

	assert.Equal(t, "free-only", err.Details["profile"])
	assert.Equal(t, 3, err.Details["attempts"])
}

func TestErrorTypeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found", ErrProfileNotFound, IsNotFoundError, true},
		{"wrapped not found", fmt.Errorf("wrapped: %w", ErrStrikeNotFound), IsNotFoundError, true},
		{"validation", ErrEmptyMessages, IsValidationError, true},
		{"validation is not not found", ErrInvalidInput, IsNotFoundError, false},
		{"unauthorized", ErrInvalidToken, IsUnauthorizedError, true},
		{"expired token is unauthorized", fmt.Errorf("%w: exp", ErrTokenExpired), IsUnauthorizedError, true},
		{"unavailable", ErrProvidersExhausted, IsUnavailableError, true},
		{"plain error", errors.New("plain"), IsUnavailableError, false},
		{"nil error", nil, IsNotFoundError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestGetErrorDetails(t *testing.T) {
	err := NewDomainError(ErrorTypeUnavailable, "exhausted", nil).WithDetail("profile", "balanced")

	assert.Equal(t, "balanced", GetErrorDetails(fmt.Errorf("wrap: %w", err))["profile"])
	assert.Nil(t, GetErrorDetails(errors.New("plain")))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("plain")))
}

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "authentication token expired",
		GetErrorMessage(fmt.Errorf("%w: token has invalid claims", ErrTokenExpired)))
	assert.Equal(t, "invalid request body", GetErrorMessage(ErrInvalidInput))
	assert.Empty(t, GetErrorMessage(errors.New("plain")))
}
