package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRefreshSecret(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	a, err := NewRefreshSecret(now, 24*time.Hour)
	require.NoError(t, err)
	b, err := NewRefreshSecret(now, 24*time.Hour)
	require.NoError(t, err)

	assert.Len(t, a.Raw, 96)
	assert.NotEqual(t, a.Raw, b.Raw)
	assert.Equal(t, Hash(a.Raw), a.Hash)
	assert.Equal(t, now.Add(24*time.Hour), a.ExpiresAt)
	assert.NotContains(t, a.Raw, ".", "refresh tokens are not structured")
}

func TestNewActivationCode(t *testing.T) {
	code, hash, err := NewActivationCode()
	require.NoError(t, err)
	assert.Len(t, code, 43)
	assert.Equal(t, Hash(code), hash)

	other, _, err := NewActivationCode()
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}
