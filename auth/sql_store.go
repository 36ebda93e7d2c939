package auth

import (
	"context"
	"database/sql"
	"time"
)

// SQLStore is the sqlite3-backed UserStore and ExtendedUserStore
// implementation (the only database/sql driver Rover bundles, see
// cmd/rover's openDatabase). The extended methods (sessions, audit
// log, login-attempt bookkeeping) live in extended_store.go; this
// file covers the base CRUD operations the plain UserStore interface
// needs.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps db as a UserStore/ExtendedUserStore.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = generateUUID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_digest, first_name, last_name, display_name, is_active, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, user.ID, user.Email, user.PasswordDigest, user.FirstName, user.LastName, user.DisplayName,
		user.IsActive, user.IsVerified, user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *SQLStore) ByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(ctx, `SELECT id, email, password_digest, first_name, last_name, display_name, is_active, is_verified, is_admin, created_at, updated_at FROM users WHERE email = $1`, email)
}

func (s *SQLStore) ByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(ctx, `SELECT id, email, password_digest, first_name, last_name, display_name, is_active, is_verified, is_admin, created_at, updated_at FROM users WHERE id = $1`, id)
}

func (s *SQLStore) scanUser(ctx context.Context, query string, arg string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordDigest, &u.FirstName, &u.LastName, &u.DisplayName,
		&u.IsActive, &u.IsVerified, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLStore) UpdatePassword(ctx context.Context, id string, passwordDigest string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET password_digest = $1, updated_at = $2 WHERE id = $3`, passwordDigest, time.Now(), id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SQLStore) ExistsEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}
