package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/account-auth/internal/model"
)

// DBTX is the subset of database/sql used by the repos. Both *sql.DB and
// *sql.Tx satisfy it, so the same repo code runs inside or outside a
// transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the MySQL credential store. Single-table reads and writes go
// through the per-table repos; state transitions that touch more than one
// row run inside a transaction here.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// withTx begins a transaction, runs fn and commits on success. Any error or
// panic rolls back.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit: %w", cerr)
		}
	}()
	return fn(tx)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (model.User, error) {
	return NewUserRepo(s.db).GetByEmail(ctx, email)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (model.User, error) {
	return NewUserRepo(s.db).GetByID(ctx, id)
}

// CreateUser inserts a PENDING user together with its first activation
// token. Either both rows exist afterwards or neither does.
func (s *Store) CreateUser(ctx context.Context, u model.User, first model.ActivationToken) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := NewUserRepo(tx).Create(ctx, u); err != nil {
			return err
		}
		return NewActivationRepo(tx).Create(ctx, first)
	})
}

func (s *Store) SetUserStatus(ctx context.Context, id string, status model.UserStatus, now time.Time) error {
	return NewUserRepo(s.db).SetStatus(ctx, id, status, now)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	return NewUserRepo(s.db).SetPasswordHash(ctx, id, hash, now)
}

// IssueActivationToken supersedes every outstanding token of the owner and
// inserts t. The owner row is locked first so concurrent issues for the
// same user serialize and leave exactly one outstanding token.
func (s *Store) IssueActivationToken(ctx context.Context, t model.ActivationToken) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := NewUserRepo(tx).LockForUpdate(ctx, t.UserID); err != nil {
			return err
		}
		acts := NewActivationRepo(tx)
		if _, err := acts.InvalidateOutstanding(ctx, t.UserID, t.CreatedAt); err != nil {
			return err
		}
		return acts.Create(ctx, t)
	})
}

func (s *Store) FindActivationToken(ctx context.Context, codeHash string) (model.ActivationToken, error) {
	return NewActivationRepo(s.db).GetByHash(ctx, codeHash)
}

// ConsumeActivationToken marks the token consumed and activates its owner
// in one transaction. Both updates are conditional; if either matches no
// row the transaction rolls back with ErrConflict, so a double submit
// activates at most once.
func (s *Store) ConsumeActivationToken(ctx context.Context, tokenID string, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		acts := NewActivationRepo(tx)
		t, err := acts.GetByID(ctx, tokenID)
		if err != nil {
			return err
		}
		if err := acts.MarkConsumed(ctx, tokenID, now); err != nil {
			return err
		}
		return NewUserRepo(tx).Activate(ctx, t.UserID, now)
	})
}

func (s *Store) StoreRefreshToken(ctx context.Context, t model.RefreshToken) error {
	return NewTokenRepo(s.db).StoreRefresh(ctx, t)
}

func (s *Store) FindRefreshToken(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	return NewTokenRepo(s.db).GetByHash(ctx, tokenHash)
}

// RotateRefreshToken revokes oldID, pointing it at next, and stores next.
// The revoke only matches an unrevoked row; a concurrent rotation of the
// same token therefore fails with ErrConflict and stores nothing.
func (s *Store) RotateRefreshToken(ctx context.Context, oldID string, next model.RefreshToken, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		tokens := NewTokenRepo(tx)
		if err := tokens.StoreRefresh(ctx, next); err != nil {
			return err
		}
		return tokens.Revoke(ctx, oldID, &next.ID, now)
	})
}

func (s *Store) RevokeRefreshToken(ctx context.Context, id string, now time.Time) error {
	return NewTokenRepo(s.db).Revoke(ctx, id, nil, now)
}

func (s *Store) RevokeUserRefreshTokens(ctx context.Context, userID string, now time.Time) (int64, error) {
	return NewTokenRepo(s.db).RevokeAllForUser(ctx, userID, now)
}
