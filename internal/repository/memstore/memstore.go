// Package memstore is an in-process credential store. Every operation runs
// under a single mutex, which makes each read-modify-write atomic without
// database support. It backs STORE_DRIVER=memory and the service tests.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/account-auth/internal/model"
	"github.com/iliyamo/account-auth/internal/repository"
)

type Store struct {
	mu          sync.Mutex
	users       map[string]model.User // by id
	emails      map[string]string     // email -> id
	activations map[string]model.ActivationToken
	codeIndex   map[string]string // code hash -> id
	refresh     map[string]model.RefreshToken
	hashIndex   map[string]string // token hash -> id
}

func New() *Store {
	return &Store{
		users:       make(map[string]model.User),
		emails:      make(map[string]string),
		activations: make(map[string]model.ActivationToken),
		codeIndex:   make(map[string]string),
		refresh:     make(map[string]model.RefreshToken),
		hashIndex:   make(map[string]string),
	}
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[normalize(email)]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) FindUserByID(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *Store) CreateUser(_ context.Context, u model.User, first model.ActivationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = normalize(u.Email)
	if _, dup := s.emails[u.Email]; dup {
		return repository.ErrEmailExists
	}
	s.users[u.ID] = u
	s.emails[u.Email] = u.ID
	s.putActivation(first)
	return nil
}

func (s *Store) SetUserStatus(_ context.Context, id string, status model.UserStatus, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Status = status
	u.UpdatedAt = now
	s.users[id] = u
	return nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, hash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = now
	s.users[id] = u
	return nil
}

func (s *Store) IssueActivationToken(_ context.Context, t model.ActivationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[t.UserID]; !ok {
		return repository.ErrNotFound
	}
	for id, old := range s.activations {
		if old.UserID == t.UserID && old.ConsumedAt == nil && old.InvalidatedAt == nil {
			at := t.CreatedAt
			old.InvalidatedAt = &at
			s.activations[id] = old
		}
	}
	s.putActivation(t)
	return nil
}

func (s *Store) FindActivationToken(_ context.Context, codeHash string) (model.ActivationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codeIndex[codeHash]
	if !ok {
		return model.ActivationToken{}, repository.ErrNotFound
	}
	return s.activations[id], nil
}

func (s *Store) ConsumeActivationToken(_ context.Context, tokenID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.activations[tokenID]
	if !ok {
		return repository.ErrNotFound
	}
	if !t.Outstanding(now) {
		return repository.ErrConflict
	}
	u, ok := s.users[t.UserID]
	if !ok || u.Status != model.StatusPending {
		return repository.ErrConflict
	}
	at := now
	t.ConsumedAt = &at
	s.activations[tokenID] = t
	u.Status = model.StatusActive
	u.ActivatedAt = &at
	u.UpdatedAt = now
	s.users[u.ID] = u
	return nil
}

func (s *Store) StoreRefreshToken(_ context.Context, t model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putRefresh(t)
	return nil
}

func (s *Store) FindRefreshToken(_ context.Context, tokenHash string) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.hashIndex[tokenHash]
	if !ok {
		return model.RefreshToken{}, repository.ErrNotFound
	}
	return s.refresh[id], nil
}

func (s *Store) RotateRefreshToken(_ context.Context, oldID string, next model.RefreshToken, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.refresh[oldID]
	if !ok || old.RevokedAt != nil {
		return repository.ErrConflict
	}
	at := now
	succ := next.ID
	old.RevokedAt = &at
	old.ReplacedBy = &succ
	s.refresh[oldID] = old
	s.putRefresh(next)
	return nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refresh[id]
	if !ok || t.RevokedAt != nil {
		return repository.ErrConflict
	}
	at := now
	t.RevokedAt = &at
	s.refresh[id] = t
	return nil
}

func (s *Store) RevokeUserRefreshTokens(_ context.Context, userID string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.refresh {
		if t.UserID == userID && t.RevokedAt == nil {
			at := now
			t.RevokedAt = &at
			s.refresh[id] = t
			n++
		}
	}
	return n, nil
}

// ActivationTokens returns a snapshot of userID's activation tokens.
func (s *Store) ActivationTokens(userID string) []model.ActivationToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ActivationToken
	for _, t := range s.activations {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

// RefreshTokens returns a snapshot of userID's refresh tokens.
func (s *Store) RefreshTokens(userID string) []model.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RefreshToken
	for _, t := range s.refresh {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

// CountUsers reports how many accounts exist.
func (s *Store) CountUsers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *Store) putActivation(t model.ActivationToken) {
	s.activations[t.ID] = t
	s.codeIndex[t.CodeHash] = t.ID
}

func (s *Store) putRefresh(t model.RefreshToken) {
	s.refresh[t.ID] = t
	s.hashIndex[t.TokenHash] = t.ID
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
