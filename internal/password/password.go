// Package password hashes and verifies user passwords. Two schemes are
// supported: bcrypt (default) and argon2id in PHC string format. Verify
// picks the scheme from the stored hash, so switching PASSWORD_HASHER does
// not lock out existing users.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrUnknownScheme is returned when a stored hash matches no supported scheme.
var ErrUnknownScheme = errors.New("password: unknown hash scheme")

// Hasher turns a plaintext password into a self-describing hash string.
type Hasher interface {
	Hash(plain string) (string, error)
}

// Bcrypt hashes with golang.org/x/crypto/bcrypt at Cost.
type Bcrypt struct {
	Cost int
}

// Hash returns a bcrypt hash using the configured cost.
func (b Bcrypt) Hash(plain string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

const argonID = "argon2id"

// Argon2id hashes with argon2id. Parallelism is pinned to one lane so a
// single verification never fans out across threads.
type Argon2id struct {
	Memory  uint32 // KiB
	Time    uint32
	SaltLen uint32
	KeyLen  uint32
}

// DefaultArgon2id follows the RFC 9106 second recommended option scaled
// for a request path.
func DefaultArgon2id() Argon2id {
	return Argon2id{Memory: 64 * 1024, Time: 3, SaltLen: 16, KeyLen: 32}
}

// Hash returns "$argon2id$v=19$m=..,t=..,p=1$salt$key".
func (a Argon2id) Hash(plain string) (string, error) {
	salt := make([]byte, a.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plain), salt, a.Time, a.Memory, 1, a.KeyLen)
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=1$%s$%s",
		argonID, argon2.Version, a.Memory, a.Time,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// Verify compares plain against encoded in constant time. A mismatch is
// reported as (false, nil); errors mean the stored hash is unusable.
func Verify(encoded, plain string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return err == nil, err
	case strings.HasPrefix(encoded, "$"+argonID+"$"):
		return verifyArgon2id(encoded, plain)
	}
	return false, ErrUnknownScheme
}

func verifyArgon2id(encoded, plain string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != argonID {
		return false, errors.New("password: invalid argon2id format")
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return false, errors.New("password: unsupported argon2 version")
	}
	var memory, time uint32
	var lanes uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &lanes); err != nil {
		return false, fmt.Errorf("password: argon2id params: %w", err)
	}
	if memory == 0 || time == 0 || lanes == 0 {
		return false, errors.New("password: invalid argon2id params")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errors.New("password: invalid argon2id salt")
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, errors.New("password: invalid argon2id key")
	}
	got := argon2.IDKey([]byte(plain), salt, time, memory, lanes, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
