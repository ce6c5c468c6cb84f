package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	secretA = []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	secretB = []byte("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newCodec(t *testing.T, now time.Time, keys ...Key) *Codec {
	t.Helper()
	if len(keys) == 0 {
		keys = []Key{{ID: "k1", Secret: secretA}}
	}
	c, err := New(Config{Keys: keys, Issuer: "account-auth", AccessTTL: 15 * time.Minute, Now: fixedClock(now)})
	require.NoError(t, err)
	return c
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c := newCodec(t, now)

	at, err := c.Encode("user-1", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), at.ExpiresAt)

	claims, err := c.Decode(at.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "k1", claims.KeyID)
	assert.True(t, claims.IssuedAt.Equal(now))
	assert.True(t, claims.ExpiresAt.Equal(at.ExpiresAt))
}

func TestDecode_ExpiredIndependentOfState(t *testing.T) {
	issued := time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)
	signer := newCodec(t, issued)
	at, err := signer.Encode("user-1", issued)
	require.NoError(t, err)

	later := newCodec(t, issued.Add(16*time.Minute))
	_, err = later.Decode(at.Token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestDecode_RejectsForeignSignature(t *testing.T) {
	now := time.Now()
	a := newCodec(t, now, Key{ID: "k1", Secret: secretA})
	b := newCodec(t, now, Key{ID: "k1", Secret: secretB})

	at, err := b.Encode("user-1", now)
	require.NoError(t, err)

	_, err = a.Decode(at.Token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDecode_ExpiredWithForeignSignatureIsInvalid(t *testing.T) {
	issued := time.Now().Add(-time.Hour)
	b := newCodec(t, issued, Key{ID: "k1", Secret: secretB})
	at, err := b.Encode("user-1", issued)
	require.NoError(t, err)

	a := newCodec(t, time.Now(), Key{ID: "k1", Secret: secretA})
	_, err = a.Decode(at.Token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDecode_KeyRotation(t *testing.T) {
	now := time.Now()
	old := newCodec(t, now, Key{ID: "k1", Secret: secretA})
	oldTok, err := old.Encode("user-1", now)
	require.NoError(t, err)

	rotated := newCodec(t, now, Key{ID: "k2", Secret: secretB}, Key{ID: "k1", Secret: secretA})
	claims, err := rotated.Decode(oldTok.Token)
	require.NoError(t, err, "retired key still in the ring must verify")
	assert.Equal(t, "k1", claims.KeyID)

	newTok, err := rotated.Encode("user-1", now)
	require.NoError(t, err)
	claims, err = rotated.Decode(newTok.Token)
	require.NoError(t, err)
	assert.Equal(t, "k2", claims.KeyID, "newest key signs")

	dropped := newCodec(t, now, Key{ID: "k2", Secret: secretB})
	_, err = dropped.Decode(oldTok.Token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDecode_RejectsAlgorithmConfusion(t *testing.T) {
	now := time.Now()
	c := newCodec(t, now)
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "account-auth",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	hs512.Header["kid"] = "k1"
	s512, err := hs512.SignedString(secretA)
	require.NoError(t, err)
	_, err = c.Decode(s512)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	none.Header["kid"] = "k1"
	sNone, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = c.Decode(sNone)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDecode_RejectsMissingKidAndGarbage(t *testing.T) {
	now := time.Now()
	c := newCodec(t, now)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "account-auth",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	})
	s, err := tok.SignedString(secretA)
	require.NoError(t, err)
	_, err = c.Decode(s)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	for _, raw := range []string{"", "abc", "a.b.c"} {
		_, err := c.Decode(raw)
		assert.ErrorIs(t, err, ErrInvalidSignature, raw)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{AccessTTL: time.Minute})
	assert.Error(t, err)

	_, err = New(Config{Keys: []Key{{ID: "k", Secret: []byte("short")}}, AccessTTL: time.Minute})
	assert.Error(t, err)

	_, err = New(Config{Keys: []Key{{ID: "k", Secret: secretA}, {ID: "k", Secret: secretB}}, AccessTTL: time.Minute})
	assert.Error(t, err)

	_, err = New(Config{Keys: []Key{{ID: "k", Secret: secretA}}})
	assert.Error(t, err)
}

func TestParseKeys(t *testing.T) {
	keys, err := ParseKeys("k2:" + string(secretB) + ", k1:" + string(secretA))
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "k2", keys[0].ID)
	assert.Equal(t, secretA, keys[1].Secret)

	_, err = ParseKeys("")
	assert.Error(t, err)

	_, err = ParseKeys("nosecret")
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "nosecret:"), "error must not echo secrets")
}
