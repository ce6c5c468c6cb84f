package model

import "time"

// ActivationToken models a row in the `activation_tokens` table. The code
// mailed to the user is never stored; only its SHA-256 hex digest is.
// Rows are kept after consumption or expiry for audit.
type ActivationToken struct {
	ID            string
	UserID        string
	CodeHash      string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	ConsumedAt    *time.Time // set once, on successful activation
	InvalidatedAt *time.Time // set when a newer token superseded this one
}

// Outstanding reports whether the token can still be redeemed at now.
func (t ActivationToken) Outstanding(now time.Time) bool {
	return t.ConsumedAt == nil && t.InvalidatedAt == nil && now.Before(t.ExpiresAt)
}

// Expired reports whether the token is past its expiry at now.
func (t ActivationToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// RefreshToken models an entry in the `refresh_tokens` table. Like the
// activation code, only the SHA-256 hash of the opaque value is stored.
// ReplacedBy links a rotated token to its successor.
type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
}

// Revoked reports whether the token was revoked or rotated away.
func (t RefreshToken) Revoked() bool { return t.RevokedAt != nil }

// Expired reports whether the token is past its expiry at now.
func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
