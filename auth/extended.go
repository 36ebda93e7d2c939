package auth

import (
	"context"
	"time"
)

// ExtendedUserStore is the superset of UserStore the handlers, rate
// limiter, and jobs package reach for with a type assertion: account
// lockout, email verification, password reset, session bookkeeping,
// and audit logging. SQLStore backs all of it with real tables;
// MemoryStore only backs the three methods below, so every assertion
// against a MemoryStore-backed deployment fails and the caller falls
// back to its degraded behavior (see handlers.go).
type ExtendedUserStore interface {
	UserStore

	Update(ctx context.Context, id string, updates map[string]interface{}) error

	IncrementFailedLoginAttempts(ctx context.Context, email string) error
	ResetFailedLoginAttempts(ctx context.Context, email string) error
	CleanupSessions(ctx context.Context, maxAge, maxInactivity time.Duration) (int, error)

	SetEmailVerificationToken(ctx context.Context, id, token string) error
	VerifyEmail(ctx context.Context, token string) (*User, error)

	SetPasswordResetToken(ctx context.Context, email, token string) error
	ResetPassword(ctx context.Context, token, newPasswordDigest string) error
	ValidateResetToken(ctx context.Context, token string) (*User, error)

	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, token string) error
	ListUserSessions(ctx context.Context, userID string) ([]*Session, error)

	LogAuthEvent(ctx context.Context, log *AuditLog) error

	RecordLoginAttempt(ctx context.Context, attempt *LoginAttempt) error
	CountRecentLoginAttempts(ctx context.Context, email string, since time.Time) (int, error)
	CountRecentIPAttempts(ctx context.Context, ip string, since time.Time) (int, error)
}

func (m *MemoryStore) IncrementFailedLoginAttempts(ctx context.Context, email string) error {
	txn := m.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First("user", "email", email)
	if err != nil {
		return err
	}
	if raw == nil {
		return ErrUserNotFound
	}
	user := *raw.(*User)
	user.FailedLoginAttempts++
	if err := txn.Insert("user", &user); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (m *MemoryStore) ResetFailedLoginAttempts(ctx context.Context, email string) error {
	txn := m.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First("user", "email", email)
	if err != nil {
		return err
	}
	if raw == nil {
		return ErrUserNotFound
	}
	user := *raw.(*User)
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	if err := txn.Insert("user", &user); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// CleanupSessions is a no-op for MemoryStore: unlike SQLStore, it
// never materializes a sessions table (sessions here are carried
// entirely in the cookie set by SetUserSession, whose value is the
// user id).
func (m *MemoryStore) CleanupSessions(ctx context.Context, maxAge, maxInactivity time.Duration) (int, error) {
	return 0, nil
}
