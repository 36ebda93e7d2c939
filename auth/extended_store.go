package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var _ ExtendedUserStore = (*SQLStore)(nil)

// Update applies a partial set of column updates built by the caller
// (see ProfileUpdateHandler); the keys are trusted column names, never
// user-supplied.
func (s *SQLStore) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	query := "UPDATE users SET "
	args := []interface{}{}
	i := 1

	for field, value := range updates {
		if i > 1 {
			query += ", "
		}
		query += fmt.Sprintf("%s = $%d", field, i)
		args = append(args, value)
		i++
	}

	query += fmt.Sprintf(" WHERE id = $%d", i)
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// SetEmailVerificationToken stashes a fresh verification token for a
// newly registered user.
func (s *SQLStore) SetEmailVerificationToken(ctx context.Context, id, token string) error {
	query := `
		UPDATE users
		SET email_verification_token = $2,
		    email_verification_sent_at = $3,
		    updated_at = $4
		WHERE id = $1
	`

	now := time.Now()
	_, err := s.db.ExecContext(ctx, query, id, token, now, now)
	if err != nil {
		return fmt.Errorf("failed to set verification token: %w", err)
	}

	return nil
}

// VerifyEmail marks the user owning token as verified. Tokens older
// than 24 hours are rejected.
func (s *SQLStore) VerifyEmail(ctx context.Context, token string) (*User, error) {
	var userID string
	var sentAt *time.Time

	query := `
		SELECT id, email_verification_sent_at
		FROM users
		WHERE email_verification_token = $1
	`

	err := s.db.QueryRowContext(ctx, query, token).Scan(&userID, &sentAt)
	if err == sql.ErrNoRows {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find verification token: %w", err)
	}

	if sentAt != nil && time.Since(*sentAt) > 24*time.Hour {
		return nil, ErrTokenExpired
	}

	now := time.Now()
	updateQuery := `
		UPDATE users
		SET is_verified = true,
		    email_verified_at = $2,
		    email_verification_token = NULL,
		    email_verification_sent_at = NULL,
		    updated_at = $3
		WHERE id = $1
	`

	_, err = s.db.ExecContext(ctx, updateQuery, userID, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to verify email: %w", err)
	}

	return s.ByID(ctx, userID)
}

// SetPasswordResetToken stashes a fresh password reset token. Silent
// on unknown emails — ForgotPasswordHandler never reveals whether an
// address is registered.
func (s *SQLStore) SetPasswordResetToken(ctx context.Context, email, token string) error {
	query := `
		UPDATE users
		SET password_reset_token = $2,
		    password_reset_sent_at = $3,
		    updated_at = $4
		WHERE email = $1
	`

	now := time.Now()
	_, err := s.db.ExecContext(ctx, query, email, token, now, now)
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}

	return nil
}

// ResetPassword validates token, then swaps in newPasswordDigest and
// clears any lockout.
func (s *SQLStore) ResetPassword(ctx context.Context, token, newPasswordDigest string) error {
	user, err := s.ValidateResetToken(ctx, token)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET password_digest = $2,
		    password_reset_token = NULL,
		    password_reset_sent_at = NULL,
		    failed_login_attempts = 0,
		    locked_until = NULL,
		    updated_at = $3
		WHERE id = $1
	`

	now := time.Now()
	_, err = s.db.ExecContext(ctx, query, user.ID, newPasswordDigest, now)
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	return nil
}

// ValidateResetToken looks up the user owning token. Tokens older
// than an hour are rejected.
func (s *SQLStore) ValidateResetToken(ctx context.Context, token string) (*User, error) {
	var userID string
	var sentAt *time.Time

	query := `
		SELECT id, password_reset_sent_at
		FROM users
		WHERE password_reset_token = $1
	`

	err := s.db.QueryRowContext(ctx, query, token).Scan(&userID, &sentAt)
	if err == sql.ErrNoRows {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate reset token: %w", err)
	}

	if sentAt != nil && time.Since(*sentAt) > time.Hour {
		return nil, ErrTokenExpired
	}

	return s.ByID(ctx, userID)
}

// IncrementFailedLoginAttempts bumps the failed-login counter and
// locks the account for 30 minutes once it reaches 5.
func (s *SQLStore) IncrementFailedLoginAttempts(ctx context.Context, email string) error {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
		        WHEN failed_login_attempts >= 4 THEN $2
		        ELSE locked_until
		    END,
		    updated_at = $3
		WHERE email = $1
	`

	lockTime := time.Now().Add(30 * time.Minute)
	now := time.Now()
	_, err := s.db.ExecContext(ctx, query, email, lockTime, now)
	if err != nil {
		return fmt.Errorf("failed to increment login attempts: %w", err)
	}

	return nil
}

// ResetFailedLoginAttempts clears the counter and lockout after a
// successful login.
func (s *SQLStore) ResetFailedLoginAttempts(ctx context.Context, email string) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0,
		    locked_until = NULL,
		    last_login_at = $2,
		    updated_at = $3
		WHERE email = $1
	`

	now := time.Now()
	_, err := s.db.ExecContext(ctx, query, email, now, now)
	if err != nil {
		return fmt.Errorf("failed to reset login attempts: %w", err)
	}

	return nil
}

// CreateSession inserts a new session row, generating an ID and
// token if the caller left them blank.
func (s *SQLStore) CreateSession(ctx context.Context, session *Session) error {
	if session.ID == "" {
		session.ID = generateUUID()
	}
	if session.Token == "" {
		session.Token = generateToken()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO sessions (
			id, user_id, token,
			ip_address, user_agent,
			expires_at, last_activity_at,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.Token,
		session.IPAddress, session.UserAgent,
		session.ExpiresAt, session.LastActivityAt,
		session.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSession looks up a session by its bearer token.
func (s *SQLStore) GetSession(ctx context.Context, token string) (*Session, error) {
	session := &Session{}

	query := `
		SELECT id, user_id, token,
		       ip_address, user_agent,
		       expires_at, last_activity_at,
		       created_at
		FROM sessions
		WHERE token = $1
	`

	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&session.ID, &session.UserID, &session.Token,
		&session.IPAddress, &session.UserAgent,
		&session.ExpiresAt, &session.LastActivityAt,
		&session.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// DeleteSession removes a session by token, used by
// RevokeSessionHandler.
func (s *SQLStore) DeleteSession(ctx context.Context, token string) error {
	query := "DELETE FROM sessions WHERE token = $1"
	_, err := s.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ListUserSessions lists a user's sessions, most recently active
// first, for SessionsHandler.
func (s *SQLStore) ListUserSessions(ctx context.Context, userID string) ([]*Session, error) {
	query := `
		SELECT id, user_id, token,
		       ip_address, user_agent,
		       expires_at, last_activity_at,
		       created_at
		FROM sessions
		WHERE user_id = $1
		ORDER BY last_activity_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		session := &Session{}

		err := rows.Scan(
			&session.ID, &session.UserID, &session.Token,
			&session.IPAddress, &session.UserAgent,
			&session.ExpiresAt, &session.LastActivityAt,
			&session.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		sessions = append(sessions, session)
	}

	return sessions, nil
}

// CleanupSessions deletes sessions past maxAge or idle longer than
// maxInactivity, returning how many rows it removed. Run periodically
// by jobs.HandleCleanupSessions.
func (s *SQLStore) CleanupSessions(ctx context.Context, maxAge, maxInactivity time.Duration) (int, error) {
	now := time.Now()
	query := `DELETE FROM sessions WHERE created_at < $1 OR last_activity_at < $2`
	result, err := s.db.ExecContext(ctx, query, now.Add(-maxAge), now.Add(-maxInactivity))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

// LogAuthEvent appends a row to the audit log, called by
// logAuthEvent for every login, registration, and password change.
func (s *SQLStore) LogAuthEvent(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = generateUUID()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO auth_audit_logs (
			id, user_id,
			event_type, event_status,
			ip_address, user_agent,
			error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		log.ID, log.UserID,
		log.EventType, log.EventStatus,
		log.IPAddress, log.UserAgent,
		log.ErrorMessage, log.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to log auth event: %w", err)
	}

	return nil
}

// RecordLoginAttempt appends a row the rate limiter counts against,
// called by DBRateLimiter.RecordAttempt after every login/register/
// forgot-password POST.
func (s *SQLStore) RecordLoginAttempt(ctx context.Context, attempt *LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = generateUUID()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO login_attempts (
			id, email, ip_address,
			success, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		attempt.ID, attempt.Email, attempt.IPAddress,
		attempt.Success, attempt.UserAgent, attempt.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}

	return nil
}

// CountRecentLoginAttempts counts failed attempts for email since the
// given time, used by DBRateLimiter to decide whether to lock an
// account.
func (s *SQLStore) CountRecentLoginAttempts(ctx context.Context, email string, since time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM login_attempts
		WHERE email = $1 AND created_at > $2 AND success = false
	`

	err := s.db.QueryRowContext(ctx, query, email, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count login attempts: %w", err)
	}

	return count, nil
}

// CountRecentIPAttempts counts failed attempts from ip since the
// given time, used by DBRateLimiter to throttle an address across
// accounts.
func (s *SQLStore) CountRecentIPAttempts(ctx context.Context, ip string, since time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM login_attempts
		WHERE ip_address = $1 AND created_at > $2 AND success = false
	`

	err := s.db.QueryRowContext(ctx, query, ip, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count IP attempts: %w", err)
	}

	return count, nil
}
