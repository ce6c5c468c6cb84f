package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/account-auth/internal/model"
	"github.com/iliyamo/account-auth/internal/repository"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) {
	t.Helper()
	err := s.CreateUser(context.Background(),
		model.User{ID: "u1", Email: "A@x.com", Status: model.StatusPending, CreatedAt: t0},
		model.ActivationToken{ID: "a1", UserID: "u1", CodeHash: "h1", CreatedAt: t0, ExpiresAt: t0.Add(time.Hour)})
	require.NoError(t, err)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := New()
	seed(t, s)

	err := s.CreateUser(context.Background(), model.User{ID: "u2", Email: "a@X.com "}, model.ActivationToken{ID: "a2"})
	assert.ErrorIs(t, err, repository.ErrEmailExists)
	assert.Equal(t, 1, s.CountUsers())
}

func TestIssueActivationToken_SupersedesOutstanding(t *testing.T) {
	s := New()
	seed(t, s)

	later := t0.Add(time.Minute)
	require.NoError(t, s.IssueActivationToken(context.Background(),
		model.ActivationToken{ID: "a2", UserID: "u1", CodeHash: "h2", CreatedAt: later, ExpiresAt: later.Add(time.Hour)}))

	outstanding := 0
	for _, tok := range s.ActivationTokens("u1") {
		if tok.Outstanding(later) {
			outstanding++
			assert.Equal(t, "a2", tok.ID)
		}
	}
	assert.Equal(t, 1, outstanding)

	err := s.ConsumeActivationToken(context.Background(), "a1", later)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestConsumeActivationToken_ConcurrentSingleWinner(t *testing.T) {
	s := New()
	seed(t, s)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.ConsumeActivationToken(context.Background(), "a1", t0.Add(time.Second))
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrConflict)
	}
	assert.Equal(t, 1, wins)

	u, err := s.FindUserByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, u.Status)
}

func TestConsumeActivationToken_Expired(t *testing.T) {
	s := New()
	seed(t, s)
	err := s.ConsumeActivationToken(context.Background(), "a1", t0.Add(2*time.Hour))
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestRotateRefreshToken(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()
	require.NoError(t, s.StoreRefreshToken(ctx, model.RefreshToken{ID: "r1", UserID: "u1", TokenHash: "t1", ExpiresAt: t0.Add(time.Hour)}))

	next := model.RefreshToken{ID: "r2", UserID: "u1", TokenHash: "t2", ExpiresAt: t0.Add(time.Hour)}
	require.NoError(t, s.RotateRefreshToken(ctx, "r1", next, t0))

	old, err := s.FindRefreshToken(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, old.Revoked())
	assert.Equal(t, "r2", *old.ReplacedBy)

	err = s.RotateRefreshToken(ctx, "r1", model.RefreshToken{ID: "r3", TokenHash: "t3"}, t0)
	assert.ErrorIs(t, err, repository.ErrConflict)
	_, err = s.FindRefreshToken(ctx, "t3")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	n, err := s.RevokeUserRefreshTokens(ctx, "u1", t0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
