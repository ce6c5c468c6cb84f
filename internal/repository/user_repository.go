package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/account-auth/internal/model"
)

const userColumns = "id,email,password_hash,first_name,last_name,status,activated_at,created_at,updated_at"

// UserRepo reads and writes the `users` table.
type UserRepo struct{ DB DBTX }

func NewUserRepo(db DBTX) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u. A unique-index violation on email maps to ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, u model.User) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id,email,password_hash,first_name,last_name,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)",
		u.ID, normalizeEmail(u.Email), u.PasswordHash, u.FirstName, u.LastName, string(u.Status), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", normalizeEmail(email))
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// LockForUpdate takes a row lock on the user for the rest of the
// surrounding transaction. Outside a transaction it only checks existence.
func (r *UserRepo) LockForUpdate(ctx context.Context, id string) error {
	var got string
	err := r.DB.QueryRowContext(ctx, "SELECT id FROM users WHERE id=? FOR UPDATE", id).Scan(&got)
	return notFound(err)
}

// Activate moves a PENDING user to ACTIVE. Any other current state yields
// ErrConflict.
func (r *UserRepo) Activate(ctx context.Context, id string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET status=?, activated_at=?, updated_at=? WHERE id=? AND status=?",
		string(model.StatusActive), now, now, id, string(model.StatusPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// SetStatus overwrites the activation state.
func (r *UserRepo) SetStatus(ctx context.Context, id string, status model.UserStatus, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET status=?, updated_at=? WHERE id=?", string(status), now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPasswordHash replaces the stored password hash.
func (r *UserRepo) SetPasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=? WHERE id=?", hash, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u         model.User
		status    string
		activated sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&status, &activated, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, notFound(err)
	}
	u.Status = model.UserStatus(status)
	if activated.Valid {
		t := activated.Time
		u.ActivatedAt = &t
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
