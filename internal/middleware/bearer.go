package middleware

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrMissingBearer   = errors.New("missing Authorization header")
	ErrMalformedBearer = errors.New("Authorization header must be \"Bearer <token>\"")
)

const bearerPrefix = "Bearer "

// BearerToken extracts the token from an Authorization header value. The
// prefix must be exactly "Bearer " and the token must be non-empty and must
// not start with whitespace.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingBearer
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrMalformedBearer
	}
	raw := header[len(bearerPrefix):]
	if raw == "" {
		return "", ErrMalformedBearer
	}
	if r, _ := utf8.DecodeRuneInString(raw); unicode.IsSpace(r) {
		return "", ErrMalformedBearer
	}
	return raw, nil
}
