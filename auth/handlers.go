package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/roverlang/rover/bridge"
	"github.com/roverlang/rover/guard"
	"github.com/roverlang/rover/mail"
	"github.com/roverlang/rover/value"
)

// RegistrationFormHandler renders the registration form.
func RegistrationFormHandler(ctx *bridge.RequestContext) (any, error) {
	return bridge.HTML(200, registrationFormHTML(nil)), nil
}

// RegistrationHandler processes a {"email","password","password_confirmation","first_name","last_name","accept_terms"} JSON registration request.
func RegistrationHandler(ctx *bridge.RequestContext) (any, error) {
	body, err := ctx.Body().JSON()
	if err != nil {
		return nil, guard.New(guard.FieldError{Field: "body", Message: "expected a JSON object"})
	}
	tbl, ok := body.Table()
	if !ok {
		return nil, guard.New(guard.FieldError{Field: "body", Message: "expected a JSON object"})
	}

	email := strings.ToLower(strings.TrimSpace(tbl.Field("email").String()))
	password := tbl.Field("password").String()
	passwordConfirmation := tbl.Field("password_confirmation").String()
	firstName := tbl.Field("first_name").String()
	lastName := tbl.Field("last_name").String()
	acceptTerms := tbl.Field("accept_terms").Bool()

	var fields []guard.FieldError
	if !isValidEmail(email) {
		fields = append(fields, guard.FieldError{Field: "email", Message: "invalid email address"})
	}
	if len(password) < 8 {
		fields = append(fields, guard.FieldError{Field: "password", Message: "password must be at least 8 characters"})
	}
	if password != passwordConfirmation {
		fields = append(fields, guard.FieldError{Field: "password_confirmation", Message: "passwords do not match"})
	}
	if !acceptTerms {
		fields = append(fields, guard.FieldError{Field: "accept_terms", Message: "you must accept the terms and conditions"})
	}
	if len(fields) > 0 {
		return nil, guard.New(fields...)
	}

	store := GetStore()
	if store == nil {
		return bridge.Error(500, "auth store not configured"), nil
	}

	exists, err := store.ExistsEmail(context.Background(), email)
	if err != nil {
		return bridge.Error(500, err.Error()), nil
	}
	if exists {
		return nil, guard.New(guard.FieldError{Field: "email", Message: "email address is already registered"})
	}

	passwordDigest, err := HashPassword(password)
	if err != nil {
		return bridge.Error(500, err.Error()), nil
	}

	verificationToken := generateToken()
	now := time.Now()
	user := &User{
		ID:                      generateUUID(),
		Email:                   email,
		PasswordDigest:          passwordDigest,
		FirstName:               firstName,
		LastName:                lastName,
		IsActive:                true,
		IsVerified:              false,
		EmailVerificationToken:  &verificationToken,
		EmailVerificationSentAt: &now,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	if err := store.Create(context.Background(), user); err != nil {
		if err == ErrUserExists {
			return nil, guard.New(guard.FieldError{Field: "email", Message: "email address is already registered"})
		}
		return bridge.Error(500, err.Error()), nil
	}

	if extStore, ok := store.(ExtendedUserStore); ok {
		_ = extStore.SetEmailVerificationToken(context.Background(), user.ID, verificationToken)
		logAuthEvent(extStore, ctx, &user.ID, EventRegister)
	}

	sendVerificationEmail(user, verificationToken)

	return bridge.JSON(201, userJSON(user)), nil
}

// EmailVerificationHandler verifies a user's email address from a
// ?token= query parameter.
func EmailVerificationHandler(ctx *bridge.RequestContext) (any, error) {
	tbl, ok := ctx.Query().Table()
	token := ""
	if ok {
		token = tbl.Field("token").String()
	}
	if token == "" {
		return bridge.Redirect(303, "/login?error=invalid_verification_link"), nil
	}

	store := GetStore()
	if store == nil {
		return bridge.Error(500, "auth store not configured"), nil
	}

	extStore, ok := store.(ExtendedUserStore)
	if !ok {
		return bridge.Redirect(303, "/login?error=verification_unsupported"), nil
	}

	user, err := extStore.VerifyEmail(context.Background(), token)
	if err != nil {
		return bridge.Redirect(303, "/login?error=invalid_or_expired_link"), nil
	}

	logAuthEvent(extStore, ctx, &user.ID, EventEmailVerification)
	return bridge.Redirect(303, "/login?success=email_verified"), nil
}

// ForgotPasswordFormHandler renders the forgot-password form.
func ForgotPasswordFormHandler(ctx *bridge.RequestContext) (any, error) {
	return bridge.HTML(200, forgotPasswordFormHTML()), nil
}

// ForgotPasswordHandler sends a password reset email if the address
// is registered. The response is identical either way, so as not to
// reveal account existence.
func ForgotPasswordHandler(ctx *bridge.RequestContext) (any, error) {
	body, err := ctx.Body().JSON()
	if err != nil {
		return nil, guard.New(guard.FieldError{Field: "body", Message: "expected a JSON object"})
	}
	tbl, ok := body.Table()
	if !ok {
		return nil, guard.New(guard.FieldError{Field: "body", Message: "expected a JSON object"})
	}
	email := strings.ToLower(strings.TrimSpace(tbl.Field("email").String()))
	if !isValidEmail(email) {
		return nil, guard.New(guard.FieldError{Field: "email", Message: "invalid email address"})
	}

	store := GetStore()
	if extStore, ok := store.(ExtendedUserStore); ok {
		resetToken := generateToken()
		_ = extStore.SetPasswordResetToken(context.Background(), email, resetToken)

		if user, err := store.ByEmail(context.Background(), email); err == nil {
			sendPasswordResetEmail(ctx, user, resetToken)
			logAuthEvent(extStore, ctx, &user.ID, EventPasswordReset)
		}
	}

	return bridge.JSON(200, messageValue("if your email is registered, you will receive password reset instructions")), nil
}

// ResetPasswordFormHandler renders the reset-password form for a
// ?token= query parameter.
func ResetPasswordFormHandler(ctx *bridge.RequestContext) (any, error) {
	tbl, ok := ctx.Query().Table()
	token := ""
	if ok {
		token = tbl.Field("token").String()
	}
	if token == "" {
		return bridge.Redirect(303, "/login?error=invalid_reset_link"), nil
	}
	return bridge.HTML(200, resetPasswordFormHTML(token)), nil
}

// ResetPasswordHandler processes a {"token","password","password_confirmation"} JSON reset request.
func ResetPasswordHandler(ctx *bridge.RequestContext) (any, error) {
	body, err := ctx.Body().JSON()
	if err != nil {
		return nil, guard.New(guard.FieldError{Field: "body", Message: "expected a JSON object"})
	}
	tbl, ok := body.Table()
	if !ok {
		return nil, guard.New(guard.FieldError{Field: "body", Message: "expected a JSON object"})
	}

	token := tbl.Field("token").String()
	password := tbl.Field("password").String()
	passwordConfirmation := tbl.Field("password_confirmation").String()

	var fields []guard.FieldError
	if len(password) < 8 {
		fields = append(fields, guard.FieldError{Field: "password", Message: "password must be at least 8 characters"})
	}
	if password != passwordConfirmation {
		fields = append(fields, guard.FieldError{Field: "password_confirmation", Message: "passwords do not match"})
	}
	if len(fields) > 0 {
		return nil, guard.New(fields...)
	}

	store := GetStore()
	extStore, ok := store.(ExtendedUserStore)
	if !ok {
		return bridge.Redirect(303, "/login?error=reset_unsupported"), nil
	}

	user, err := extStore.ValidateResetToken(context.Background(), token)
	if err != nil {
		return bridge.Redirect(303, "/login?error=invalid_or_expired_token"), nil
	}

	passwordDigest, err := HashPassword(password)
	if err != nil {
		return bridge.Error(500, err.Error()), nil
	}

	if err := extStore.ResetPassword(context.Background(), token, passwordDigest); err != nil {
		return bridge.Redirect(303, "/login?error=reset_failed"), nil
	}

	logAuthEvent(extStore, ctx, &user.ID, EventPasswordUpdate)
	return bridge.Redirect(303, "/login?success=password_reset"), nil
}

// ProfileHandler returns the current user's profile as JSON.
func ProfileHandler(ctx *bridge.RequestContext) (any, error) {
	user := CurrentUser(ctx)
	if user == nil {
		return bridge.Redirect(303, "/login"), nil
	}
	return bridge.JSON(200, userJSON(user)), nil
}

// ProfileUpdateHandler updates the current user's profile fields from
// a {"first_name","last_name","display_name","avatar_url"} JSON body.
func ProfileUpdateHandler(ctx *bridge.RequestContext) (any, error) {
	user := CurrentUser(ctx)
	if user == nil {
		return bridge.Redirect(303, "/login"), nil
	}

	body, err := ctx.Body().JSON()
	if err != nil {
		return nil, guard.New(guard.FieldError{Field: "body", Message: "expected a JSON object"})
	}
	tbl, ok := body.Table()
	if !ok {
		return nil, guard.New(guard.FieldError{Field: "body", Message: "expected a JSON object"})
	}

	store := GetStore()
	extStore, ok := store.(ExtendedUserStore)
	if !ok {
		return bridge.Error(501, "profile update not supported"), nil
	}

	updates := map[string]interface{}{
		"first_name":   tbl.Field("first_name").String(),
		"last_name":    tbl.Field("last_name").String(),
		"display_name": tbl.Field("display_name").String(),
		"updated_at":   time.Now(),
	}
	if avatarURL := tbl.Field("avatar_url").String(); avatarURL != "" {
		updates["avatar_url"] = avatarURL
	}

	if err := extStore.Update(context.Background(), user.ID, updates); err != nil {
		return bridge.Error(500, "failed to update profile"), nil
	}

	logAuthEvent(extStore, ctx, &user.ID, EventProfileUpdate)
	return bridge.JSON(200, messageValue("profile updated successfully")), nil
}

// SessionsHandler lists the current user's active sessions.
func SessionsHandler(ctx *bridge.RequestContext) (any, error) {
	user := CurrentUser(ctx)
	if user == nil {
		return bridge.Redirect(303, "/login"), nil
	}

	store := GetStore()
	t := value.NewTable()
	if extStore, ok := store.(ExtendedUserStore); ok {
		if sessions, err := extStore.ListUserSessions(context.Background(), user.ID); err == nil {
			for _, s := range sessions {
				entry := value.NewTable()
				entry.SetField("id", value.String(s.ID))
				entry.SetField("created_at", value.String(s.CreatedAt.Format(time.RFC3339)))
				t.Append(value.TableValue(entry))
			}
		}
	}
	return bridge.JSON(200, value.TableValue(t)), nil
}

// RevokeSessionHandler revokes a session, identified by a
// "session_id" route parameter.
func RevokeSessionHandler(ctx *bridge.RequestContext) (any, error) {
	user := CurrentUser(ctx)
	if user == nil {
		return bridge.Redirect(303, "/login"), nil
	}

	tbl, ok := ctx.Params().Table()
	sessionID := ""
	if ok {
		sessionID = tbl.Field("session_id").String()
	}

	store := GetStore()
	if extStore, ok := store.(ExtendedUserStore); ok {
		_ = extStore.DeleteSession(context.Background(), sessionID)
	}

	return bridge.JSON(200, messageValue("session revoked")), nil
}

// Helper functions

func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	if len(parts[0]) == 0 || len(parts[1]) == 0 {
		return false
	}
	if !strings.Contains(parts[1], ".") {
		return false
	}
	return true
}

func generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func messageValue(msg string) value.Value {
	t := value.NewTable()
	t.SetField("message", value.String(msg))
	return value.TableValue(t)
}

func logAuthEvent(store ExtendedUserStore, ctx *bridge.RequestContext, userID *string, event AuthEvent) {
	audit := &AuditLog{
		ID:          generateUUID(),
		UserID:      userID,
		EventType:   string(event),
		EventStatus: string(StatusSuccess),
		IPAddress:   getClientIP(ctx),
		UserAgent:   headerValue(ctx, "User-Agent"),
		CreatedAt:   time.Now(),
	}
	_ = store.LogAuthEvent(context.Background(), audit)
}

func sendVerificationEmail(user *User, token string) {
	verifyURL := fmt.Sprintf("/verify-email?token=%s", token)
	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
	<h2>Verify Your Email</h2>
	<p>Hi %s,</p>
	<p>Thank you for registering! Please verify your email address by clicking the link below:</p>
	<p style="margin: 30px 0;">
		<a href="%s" style="background: #4CAF50; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; display: inline-block;">
			Verify Email
		</a>
	</p>
	<p>Or copy and paste this link: %s</p>
	<p style="color: #666;">If you didn't create an account, you can safely ignore this email.</p>
</body>
</html>`, user.Name(), verifyURL, verifyURL)

	text := fmt.Sprintf("Hi %s,\n\nThank you for registering! Please verify your email address by visiting:\n\n%s\n\nIf you didn't create an account, you can safely ignore this email.", user.Name(), verifyURL)

	if err := mail.Send(context.Background(), mail.Message{To: user.Email, Subject: "Verify Your Email", HTML: html, Text: text}); err != nil {
		log.Printf("auth: failed to send verification email to %s: %v", user.Email, err)
	}
}

func sendPasswordResetEmail(ctx *bridge.RequestContext, user *User, token string) {
	resetURL := fmt.Sprintf("/reset-password?token=%s", token)
	requestIP := getClientIP(ctx)

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
	<h2>Reset Your Password</h2>
	<p>Hi %s,</p>
	<p>We received a request to reset your password. Click the link below to create a new password:</p>
	<p style="margin: 30px 0;">
		<a href="%s" style="background: #4CAF50; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; display: inline-block;">
			Reset Password
		</a>
	</p>
	<p>Or copy and paste this link: %s</p>
	<p style="color: #ff9800;">This link expires in 1 hour.</p>
	<p style="color: #666;">Request from IP: %s</p>
	<p style="color: #666;">If you didn't request this, please ignore this email.</p>
</body>
</html>`, user.Name(), resetURL, resetURL, requestIP)

	text := fmt.Sprintf("Hi %s,\n\nWe received a request to reset your password. Visit this link to create a new password:\n\n%s\n\nThis link expires in 1 hour.\n\nRequest from IP: %s\n\nIf you didn't request this, please ignore this email.",
		user.Name(), resetURL, requestIP)

	if err := mail.Send(context.Background(), mail.Message{To: user.Email, Subject: "Reset Your Password", HTML: html, Text: text}); err != nil {
		log.Printf("auth: failed to send password reset email to %s: %v", user.Email, err)
	}
}

func registrationFormHTML(errs []guard.FieldError) string {
	return `<html><body><h1>Register</h1><form method="POST" action="/register">
		<input type="email" name="email" placeholder="Email" required>
		<input type="password" name="password" placeholder="Password" required>
		<input type="password" name="password_confirmation" placeholder="Confirm password" required>
		<input type="text" name="first_name" placeholder="First name">
		<input type="text" name="last_name" placeholder="Last name">
		<label><input type="checkbox" name="accept_terms"> I accept the terms and conditions</label>
		<button type="submit">Register</button>
		</form></body></html>`
}

func forgotPasswordFormHTML() string {
	return `<html><body><h1>Forgot Password</h1><form method="POST" action="/forgot-password">
		<input type="email" name="email" placeholder="Email" required>
		<button type="submit">Send reset link</button>
		</form></body></html>`
}

func resetPasswordFormHTML(token string) string {
	return fmt.Sprintf(`<html><body><h1>Reset Password</h1><form method="POST" action="/reset-password">
		<input type="hidden" name="token" value="%s">
		<input type="password" name="password" placeholder="New password" required>
		<input type="password" name="password_confirmation" placeholder="Confirm password" required>
		<button type="submit">Reset password</button>
		</form></body></html>`, token)
}
