package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/account-auth/internal/model"
)

const activationColumns = "id,user_id,code_hash,created_at,expires_at,consumed_at,invalidated_at"

// ActivationRepo persists activation tokens (`activation_tokens`). Only
// the SHA-256 hash of each code is stored.
type ActivationRepo struct{ DB DBTX }

func NewActivationRepo(db DBTX) *ActivationRepo { return &ActivationRepo{DB: db} }

func (r *ActivationRepo) Create(ctx context.Context, t model.ActivationToken) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO activation_tokens (id,user_id,code_hash,created_at,expires_at) VALUES (?,?,?,?,?)",
		t.ID, t.UserID, t.CodeHash, t.CreatedAt, t.ExpiresAt)
	return err
}

func (r *ActivationRepo) GetByHash(ctx context.Context, codeHash string) (model.ActivationToken, error) {
	return scanActivation(r.DB.QueryRowContext(ctx,
		"SELECT "+activationColumns+" FROM activation_tokens WHERE code_hash=? LIMIT 1", codeHash))
}

func (r *ActivationRepo) GetByID(ctx context.Context, id string) (model.ActivationToken, error) {
	return scanActivation(r.DB.QueryRowContext(ctx,
		"SELECT "+activationColumns+" FROM activation_tokens WHERE id=? LIMIT 1", id))
}

// InvalidateOutstanding supersedes every unconsumed, not yet superseded
// token of userID and reports how many it touched.
func (r *ActivationRepo) InvalidateOutstanding(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE activation_tokens SET invalidated_at=? WHERE user_id=? AND consumed_at IS NULL AND invalidated_at IS NULL",
		now, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkConsumed sets consumed_at if the token is still redeemable at now.
// Zero affected rows means another request consumed it, it was
// superseded, or it expired: ErrConflict.
func (r *ActivationRepo) MarkConsumed(ctx context.Context, id string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE activation_tokens SET consumed_at=? WHERE id=? AND consumed_at IS NULL AND invalidated_at IS NULL AND expires_at > ?",
		now, id, now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

func scanActivation(row *sql.Row) (model.ActivationToken, error) {
	var (
		t           model.ActivationToken
		consumed    sql.NullTime
		invalidated sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.CodeHash, &t.CreatedAt, &t.ExpiresAt, &consumed, &invalidated); err != nil {
		return model.ActivationToken{}, notFound(err)
	}
	if consumed.Valid {
		v := consumed.Time
		t.ConsumedAt = &v
	}
	if invalidated.Valid {
		v := invalidated.Time
		t.InvalidatedAt = &v
	}
	return t, nil
}
