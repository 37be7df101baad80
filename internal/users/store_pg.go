package users

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGStore struct{ DB *pgxpool.Pool }

const userCols = `id, username, email, password_hash, role, is_active, created_at, last_login`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.LastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PGStore) ByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(s.DB.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username=$1`, username))
}

func (s *PGStore) ByID(ctx context.Context, id string) (*User, error) {
	return scanUser(s.DB.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

func (s *PGStore) Insert(ctx context.Context, u *User) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO users(id, username, email, password_hash, role, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.IsActive, u.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "users_email_key" {
			return ErrEmailTaken
		}
		return ErrUsernameTaken
	}
	return err
}

func (s *PGStore) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.DB.Exec(ctx, `UPDATE users SET last_login=$2 WHERE id=$1`, id, at)
	return err
}

func (s *PGStore) SetRole(ctx context.Context, id, role string) error {
	ct, err := s.DB.Exec(ctx, `UPDATE users SET role=$2 WHERE id=$1`, id, role)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) SetActive(ctx context.Context, id string, active bool) error {
	ct, err := s.DB.Exec(ctx, `UPDATE users SET is_active=$2 WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// List returns every user with scan-activity totals, newest first.
func (s *PGStore) List(ctx context.Context) ([]UserSummary, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT u.id, u.username, u.email, u.role, u.is_active, u.created_at, u.last_login,
		       COUNT(so.id), COALESCE(SUM(so.product_count), 0)
		FROM users u
		LEFT JOIN scan_operations so ON so.user_id = u.id
		GROUP BY u.id
		ORDER BY u.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserSummary
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.IsActive, &u.CreatedAt,
			&u.LastLogin, &u.TotalScans, &u.TotalProductsScanned); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
