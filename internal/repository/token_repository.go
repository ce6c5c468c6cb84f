package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/account-auth/internal/model"
)

const refreshColumns = "id,user_id,token_hash,created_at,expires_at,revoked_at,replaced_by"

// TokenRepo persists refresh tokens (single 'token_hash' lookup column).
type TokenRepo struct{ DB DBTX }

func NewTokenRepo(db DBTX) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, t model.RefreshToken) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (id,user_id,token_hash,created_at,expires_at) VALUES (?,?,?,?,?)",
		t.ID, t.UserID, t.TokenHash, t.CreatedAt, t.ExpiresAt)
	return err
}

// GetByHash returns the row whatever its state; the caller decides what
// revoked or expired means.
func (r *TokenRepo) GetByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var (
		t        model.RefreshToken
		revoked  sql.NullTime
		replaced sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+refreshColumns+" FROM refresh_tokens WHERE token_hash=? LIMIT 1", tokenHash).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &revoked, &replaced)
	if err != nil {
		return model.RefreshToken{}, notFound(err)
	}
	if revoked.Valid {
		v := revoked.Time
		t.RevokedAt = &v
	}
	if replaced.Valid {
		v := replaced.String
		t.ReplacedBy = &v
	}
	return t, nil
}

// Revoke marks a token as revoked, optionally recording its successor.
// An already revoked token yields ErrConflict.
func (r *TokenRepo) Revoke(ctx context.Context, id string, replacedBy *string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=?, replaced_by=? WHERE id=? AND revoked_at IS NULL",
		now, replacedBy, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// RevokeAllForUser revokes all user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		now, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
