package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"wanderlust/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepo struct{ db *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `u.id, u.email, u.name, u.password_hash, u.role`

func (r *UserRepo) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users u WHERE LOWER(u.email) = LOWER(?)`, email)
}

// SessionUser resolves the user bound to a sid cookie.
func (r *UserRepo) SessionUser(ctx context.Context, sid string) (*domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+`
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.id = ?`, sid)
}

// BindSession links a sid to a user, creating the session row if needed.
func (r *UserRepo) BindSession(ctx context.Context, sid, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions(id, user_id, last_seen) VALUES(?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, last_seen = CURRENT_TIMESTAMP`, sid, userID)
	return err
}

func (r *UserRepo) UnbindSession(ctx context.Context, sid string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET user_id = NULL, last_seen = CURRENT_TIMESTAMP WHERE id = ?`, sid)
	return err
}

func (r *UserRepo) one(ctx context.Context, q string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, q, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
