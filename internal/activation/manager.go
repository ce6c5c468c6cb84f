// Package activation issues and redeems single-use account activation codes.
// Codes are 256-bit random values; only their SHA-256 digest is persisted.
package activation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/account-auth/internal/model"
	"github.com/iliyamo/account-auth/internal/repository"
	"github.com/iliyamo/account-auth/internal/token"
)

var (
	// ErrInvalidCode covers unknown, consumed and superseded codes.
	ErrInvalidCode = errors.New("activation: invalid code")
	ErrCodeExpired = errors.New("activation: code expired")
)

// Store is the slice of the credential store the manager needs.
type Store interface {
	IssueActivationToken(ctx context.Context, t model.ActivationToken) error
	FindActivationToken(ctx context.Context, codeHash string) (model.ActivationToken, error)
	ConsumeActivationToken(ctx context.Context, tokenID string, now time.Time) error
}

type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store Store, ttl time.Duration, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: store, ttl: ttl, now: now}
}

// New mints a code and the row that records it without persisting anything.
// Registration stores the row in the same transaction as the user.
func (m *Manager) New(userID string, now time.Time) (string, model.ActivationToken, error) {
	code, hash, err := token.NewActivationCode()
	if err != nil {
		return "", model.ActivationToken{}, err
	}
	return code, model.ActivationToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		CodeHash:  hash,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}, nil
}

// Rotate issues a fresh code for userID and supersedes any outstanding one.
// It returns the code and when it stops being redeemable.
func (m *Manager) Rotate(ctx context.Context, userID string) (string, time.Time, error) {
	code, t, err := m.New(userID, m.now().UTC())
	if err != nil {
		return "", time.Time{}, err
	}
	if err := m.store.IssueActivationToken(ctx, t); err != nil {
		return "", time.Time{}, fmt.Errorf("issue activation token: %w", err)
	}
	return code, t.ExpiresAt, nil
}

// Redeem validates code and consumes it. The returned token names the user
// that was activated.
func (m *Manager) Redeem(ctx context.Context, code string) (model.ActivationToken, error) {
	if code == "" {
		return model.ActivationToken{}, ErrInvalidCode
	}
	t, err := m.store.FindActivationToken(ctx, token.Hash(code))
	if errors.Is(err, repository.ErrNotFound) {
		return model.ActivationToken{}, ErrInvalidCode
	}
	if err != nil {
		return model.ActivationToken{}, fmt.Errorf("find activation token: %w", err)
	}

	now := m.now().UTC()
	switch {
	case t.ConsumedAt != nil, t.InvalidatedAt != nil:
		return model.ActivationToken{}, ErrInvalidCode
	case t.Expired(now):
		return model.ActivationToken{}, ErrCodeExpired
	}

	// The store re-checks every condition; losing a concurrent race or the
	// user having left PENDING shows up as a conflict.
	err = m.store.ConsumeActivationToken(ctx, t.ID, now)
	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrNotFound):
		return model.ActivationToken{}, ErrInvalidCode
	default:
		return model.ActivationToken{}, fmt.Errorf("consume activation token: %w", err)
	}
}
