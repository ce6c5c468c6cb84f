package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	refreshSecretBytes  = 48 // 96 hex chars
	activationCodeBytes = 32 // 256 bits, base64url without padding
)

// RefreshSecret is a freshly minted opaque refresh token. Raw goes to the
// client; only Hash is persisted.
type RefreshSecret struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

// NewRefreshSecret returns a random refresh token valid until now+ttl. It
// encodes no claims, so rotating it is purely a storage transition.
func NewRefreshSecret(now time.Time, ttl time.Duration) (RefreshSecret, error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return RefreshSecret{}, fmt.Errorf("token: read random: %w", err)
	}
	raw := hex.EncodeToString(buf)
	return RefreshSecret{
		Raw:       raw,
		Hash:      Hash(raw),
		ExpiresAt: now.UTC().Add(ttl),
	}, nil
}

// NewActivationCode returns a URL-safe random activation code and its
// storage hash.
func NewActivationCode() (code, hash string, err error) {
	buf := make([]byte, activationCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("token: read random: %w", err)
	}
	code = base64.RawURLEncoding.EncodeToString(buf)
	return code, Hash(code), nil
}

// Hash returns the SHA-256 hex digest used as the lookup key for stored
// secrets. Storing only the digest keeps a leaked table from being usable.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
