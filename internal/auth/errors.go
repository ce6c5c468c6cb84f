package auth

import (
	"errors"
	"sort"
	"strings"
)

// Domain failures returned by Service. The HTTP layer maps each one to a
// status code; anything else is an infrastructure failure.
var (
	ErrDuplicateAccount     = errors.New("an account with this email already exists")
	ErrAuthenticationFailed = errors.New("invalid email or password")
	ErrAccountNotActivated  = errors.New("account is not activated")
	ErrAccountDisabled      = errors.New("account is disabled")
	ErrInvalidToken         = errors.New("activation token is invalid")
	ErrTokenExpired         = errors.New("activation token has expired")
	ErrInvalidRefreshToken  = errors.New("refresh token is invalid")
	ErrRefreshTokenExpired  = errors.New("refresh token has expired")
	ErrDeliveryFailed       = errors.New("activation email could not be delivered")
	ErrUserNotFound         = errors.New("user not found")
	ErrAlreadyActive        = errors.New("account is already active")
)

// ValidationError lists the offending input fields and why each was rejected.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
