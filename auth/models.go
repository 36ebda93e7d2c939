package auth

import "time"

// User is the record behind a Rover session: the bridge layer never
// marshals this with encoding/json (see userJSON in auth.go), so the
// fields here exist for SQLStore's hand-scanned queries, not for
// struct-tag reflection.
type User struct {
	ID             string
	Email          string
	PasswordDigest string

	FirstName   string
	LastName    string
	DisplayName string
	AvatarURL   *string

	IsActive   bool
	IsVerified bool
	IsAdmin    bool

	EmailVerifiedAt         *time.Time
	EmailVerificationToken  *string
	EmailVerificationSentAt *time.Time

	PasswordResetToken  *string
	PasswordResetSentAt *time.Time

	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName joins first and last name, falling back to whichever half
// is set.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Name returns the best available name for display.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.FullName()
}

// IsLocked returns true if the account is currently locked.
func (u *User) IsLocked() bool {
	if u.LockedUntil == nil {
		return false
	}
	return u.LockedUntil.After(time.Now())
}

// CanLogin returns true if the user can currently log in.
func (u *User) CanLogin() bool {
	return u.IsActive && !u.IsLocked()
}

// Session is a server-side session row backing the cookie SQLStore
// deployments hand out; MemoryStore deployments never materialize
// this (see CleanupSessions in extended.go).
type Session struct {
	ID     string
	UserID string
	Token  string

	IPAddress string
	UserAgent string

	ExpiresAt      time.Time
	LastActivityAt time.Time

	CreatedAt time.Time

	User *User
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return s.ExpiresAt.Before(time.Now())
}

// AuditLog is one row logAuthEvent (auth/handlers.go) writes for every
// login, registration, password reset, and email verification.
type AuditLog struct {
	ID     string
	UserID *string

	EventType   string
	EventStatus string

	IPAddress string
	UserAgent string

	ErrorMessage *string

	CreatedAt time.Time
}

// LoginAttempt is one row DBRateLimiter (auth/rate_limit.go) records
// per login/register/forgot-password POST, keyed by email and IP.
type LoginAttempt struct {
	ID        string
	Email     string
	IPAddress string

	Success bool

	UserAgent string

	CreatedAt time.Time
}

// AuthEvent names an event recorded to the audit log.
type AuthEvent string

const (
	EventLogin             AuthEvent = "login"
	EventLogout            AuthEvent = "logout"
	EventRegister          AuthEvent = "register"
	EventPasswordReset     AuthEvent = "password_reset"
	EventPasswordUpdate    AuthEvent = "password_update"
	EventEmailVerification AuthEvent = "email_verification"
	EventProfileUpdate     AuthEvent = "profile_update"
)

const StatusSuccess = "success"
