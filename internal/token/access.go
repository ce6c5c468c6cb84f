// Package token creates and verifies the credentials handed to clients:
// signed access tokens (JWT, HS256) and opaque random secrets used for
// refresh tokens and activation codes.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLen is the shortest HMAC secret the keyring accepts.
const MinSecretLen = 32

var (
	// ErrExpired is returned by Decode for a well-signed token past its exp.
	ErrExpired = errors.New("access token expired")
	// ErrInvalidSignature covers everything else Decode rejects: bad
	// signature, unknown kid, wrong algorithm, malformed input.
	ErrInvalidSignature = errors.New("access token invalid")
)

// Key is one HMAC signing key identified by the kid header.
type Key struct {
	ID     string
	Secret []byte
}

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// Claims is the decoded content of a valid access token.
type Claims struct {
	UserID    string
	KeyID     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Config configures a Codec. Keys are ordered newest first: Keys[0] signs,
// every key verifies.
type Config struct {
	Keys      []Key
	Issuer    string
	AccessTTL time.Duration
	Now       func() time.Time
}

// Codec signs and verifies access tokens. It is immutable after New and
// safe for concurrent use.
type Codec struct {
	sign   Key
	verify map[string][]byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// New validates cfg and builds a Codec.
func New(cfg Config) (*Codec, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("token: access TTL must be positive")
	}
	if len(cfg.Keys) == 0 {
		return nil, errors.New("token: at least one signing key is required")
	}
	verify := make(map[string][]byte, len(cfg.Keys))
	for _, k := range cfg.Keys {
		id := strings.TrimSpace(k.ID)
		if id == "" {
			return nil, errors.New("token: key id must not be empty")
		}
		if len(k.Secret) < MinSecretLen {
			return nil, fmt.Errorf("token: key %q shorter than %d bytes", id, MinSecretLen)
		}
		if _, dup := verify[id]; dup {
			return nil, fmt.Errorf("token: duplicate key id %q", id)
		}
		verify[id] = append([]byte(nil), k.Secret...)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	first := cfg.Keys[0]
	return &Codec{
		sign:   Key{ID: strings.TrimSpace(first.ID), Secret: verify[strings.TrimSpace(first.ID)]},
		verify: verify,
		issuer: cfg.Issuer,
		ttl:    cfg.AccessTTL,
		now:    now,
	}, nil
}

// TTL is the lifetime given to every access token.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Encode builds and signs an HS256 JWT for userID with iat=now and
// exp=now+TTL. The kid header names the signing key.
func (c *Codec) Encode(userID string, now time.Time) (AccessToken, error) {
	if userID == "" {
		return AccessToken{}, errors.New("token: empty subject")
	}
	now = now.UTC()
	exp := now.Add(c.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["kid"] = c.sign.ID
	signed, err := t.SignedString(c.sign.Secret)
	if err != nil {
		return AccessToken{}, fmt.Errorf("token: sign: %w", err)
	}
	return AccessToken{Token: signed, ExpiresAt: exp}, nil
}

// Decode verifies raw and returns its claims. Only HS256 is accepted and
// the key is chosen by kid, so a token signed by a key that has left the
// keyring fails.
func (c *Codec) Decode(raw string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var kid string
	var rc jwt.RegisteredClaims
	tok, err := jwt.NewParser(opts...).ParseWithClaims(raw, &rc, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm %v", t.Header["alg"])
		}
		kid, _ = t.Header["kid"].(string)
		secret, ok := c.verify[kid]
		if !ok {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return secret, nil
	})
	if err != nil {
		// Expiry is only reported once the signature checked out; jwt/v5
		// verifies the signature before validating claims.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !tok.Valid || rc.Subject == "" {
		return Claims{}, ErrInvalidSignature
	}

	out := Claims{UserID: rc.Subject, KeyID: kid}
	if rc.IssuedAt != nil {
		out.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		out.ExpiresAt = rc.ExpiresAt.Time
	}
	return out, nil
}

// ParseKeys reads the JWT_KEYS format: comma separated "kid:secret" pairs,
// newest first.
func ParseKeys(s string) ([]Key, error) {
	var keys []Key
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, secret, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(id) == "" || secret == "" {
			return nil, fmt.Errorf("token: malformed key entry %q", redact(part))
		}
		keys = append(keys, Key{ID: strings.TrimSpace(id), Secret: []byte(secret)})
	}
	if len(keys) == 0 {
		return nil, errors.New("token: no keys configured")
	}
	return keys, nil
}

func redact(entry string) string {
	if id, _, ok := strings.Cut(entry, ":"); ok {
		return id + ":***"
	}
	return "***"
}
