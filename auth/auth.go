// Package auth adapts the session-based authentication collaborator
// carried over from the teacher stack to Rover's script bridge: a
// user store interface, password hashing, session lookup, and the
// handful of handlers/middleware a script registers directly on
// routes.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"golang.org/x/crypto/bcrypt"

	"github.com/roverlang/rover/bridge"
	"github.com/roverlang/rover/guard"
	"github.com/roverlang/rover/value"
)

// UserStore defines the minimal interface for user storage.
type UserStore interface {
	Create(ctx context.Context, user *User) error
	ByEmail(ctx context.Context, email string) (*User, error)
	ByID(ctx context.Context, id string) (*User, error)
	UpdatePassword(ctx context.Context, id string, passwordDigest string) error
	ExistsEmail(ctx context.Context, email string) (bool, error)
}

var (
	// globalStore is the process-wide user store, set once at startup
	// by the host (cmd/rover) via UseStore.
	globalStore UserStore

	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("user already exists")
	ErrTokenInvalid       = errors.New("token not found")
	ErrTokenExpired       = errors.New("token expired")
)

// UseStore sets the global user store.
func UseStore(store UserStore) {
	globalStore = store
}

// GetStore returns the current global store.
func GetStore() UserStore {
	return globalStore
}

// LoginFormHandler serves a minimal login form.
func LoginFormHandler(ctx *bridge.RequestContext) (any, error) {
	html := `<html><body><h1>Login</h1><form method="POST" action="/login">
		<input type="email" name="email" placeholder="Email" required>
		<input type="password" name="password" placeholder="Password" required>
		<button type="submit">Login</button>
		</form></body></html>`
	return bridge.HTML(200, html), nil
}

// LoginHandler authenticates a user from a JSON body {"email","password"}
// and stores the user id in the per-request scratch map as the session
// cookie value, the way SetUserSession expects to find it.
func LoginHandler(ctx *bridge.RequestContext) (any, error) {
	body, err := ctx.Body().JSON()
	if err != nil {
		return nil, guard.Require(false, "body", "expected a JSON request body")
	}
	tbl, ok := body.Table()
	if !ok {
		return nil, guard.Require(false, "body", "expected a JSON object")
	}

	email := strings.ToLower(strings.TrimSpace(tbl.Field("email").String()))
	password := tbl.Field("password").String()

	store := GetStore()
	if store == nil {
		return bridge.Error(500, "auth store not configured"), nil
	}

	user, err := store.ByEmail(context.Background(), email)
	if err != nil {
		return bridge.Error(401, ErrInvalidCredentials.Error()), nil
	}
	if err := CheckPassword(password, user.PasswordDigest); err != nil {
		return bridge.Error(401, ErrInvalidCredentials.Error()), nil
	}

	SetUserSession(ctx, user.ID)
	if extStore, ok := store.(ExtendedUserStore); ok {
		logAuthEvent(extStore, ctx, &user.ID, EventLogin)
	}
	return bridge.JSON(200, userJSON(user)), nil
}

// LogoutHandler clears the session and redirects to the login form.
func LogoutHandler(ctx *bridge.RequestContext) (any, error) {
	ClearUserSession(ctx)
	return bridge.Redirect(303, "/login"), nil
}

// RequireLogin rejects unauthenticated requests with a redirect to the
// login form, matching the session-cookie convention SetUserSession
// and GetUserSession share.
func RequireLogin(next bridge.HandlerFunc) bridge.HandlerFunc {
	return func(ctx *bridge.RequestContext) (any, error) {
		if GetUserSession(ctx) == "" {
			return bridge.Redirect(303, "/login"), nil
		}
		return next(ctx)
	}
}

// sessionCookieName is the cookie Rover uses to carry the session
// token set by SetUserSession.
const sessionCookieName = "rover_session"

// SetUserSession stashes userID in the scratch map under the session
// key and queues a Set-Cookie header carrying it for the response.
func SetUserSession(ctx *bridge.RequestContext, userID string) {
	ctx.Set("user_id", userID)
	ctx.SetHeader("Set-Cookie", sessionCookieName+"="+userID+"; Path=/; HttpOnly; SameSite=Lax")
}

// GetUserSession returns the session's user id, reading first the
// per-request scratch value (set earlier this request by
// SetUserSession or a session-loading middleware) and falling back to
// the request's own Cookie header.
func GetUserSession(ctx *bridge.RequestContext) string {
	if uid, ok := ctx.Get("user_id"); ok {
		if id, isStr := uid.(string); isStr {
			return id
		}
	}
	return cookieValue(ctx, sessionCookieName)
}

// ClearUserSession removes the session value and expires the cookie.
func ClearUserSession(ctx *bridge.RequestContext) {
	ctx.Set("user_id", "")
	ctx.SetHeader("Set-Cookie", sessionCookieName+"=; Path=/; HttpOnly; Max-Age=0")
}

// CurrentUser loads the user identified by the request's session, or
// nil if there is none. When no store is configured or the store
// can't find the id, it returns a User carrying only that id.
func CurrentUser(ctx *bridge.RequestContext) *User {
	userID := GetUserSession(ctx)
	if userID == "" {
		return nil
	}

	if globalStore != nil {
		user, err := globalStore.ByID(context.Background(), userID)
		if err == nil {
			return user
		}
	}

	return &User{ID: userID}
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a plaintext password against its bcrypt hash.
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// generateUUID returns a random UUIDv4 string, used for every
// generated ID in this package (users, sessions, audit log rows,
// devices, login attempts).
func generateUUID() string {
	return uuid.NewString()
}

// getClientIP extracts the caller's address, preferring a trusted
// reverse-proxy header over the (in Rover's single-process reactor,
// usually absent) direct connection address.
func getClientIP(ctx *bridge.RequestContext) string {
	if ip := headerValue(ctx, "X-Forwarded-For"); ip != "" {
		if idx := strings.Index(ip, ","); idx != -1 {
			ip = ip[:idx]
		}
		return strings.TrimSpace(ip)
	}
	if ip := headerValue(ctx, "X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	return ""
}

func headerValue(ctx *bridge.RequestContext, name string) string {
	tbl, ok := ctx.Headers().Table()
	if !ok {
		return ""
	}
	for _, v := range tbl.ArrayValues() {
		entry, ok := v.Table()
		if !ok {
			continue
		}
		if strings.EqualFold(entry.Field("name").String(), name) {
			return entry.Field("value").String()
		}
	}
	return ""
}

func cookieValue(ctx *bridge.RequestContext, name string) string {
	raw := headerValue(ctx, "Cookie")
	if raw == "" {
		return ""
	}
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 && kv[0] == name {
			return kv[1]
		}
	}
	return ""
}

// userJSON builds the public (password-digest-free) JSON
// representation of a user for handler responses.
func userJSON(user *User) value.Value {
	t := value.NewTable()
	t.SetField("id", value.String(user.ID))
	t.SetField("email", value.String(user.Email))
	t.SetField("display_name", value.String(user.Name()))
	t.SetField("is_active", value.Bool(user.IsActive))
	t.SetField("is_verified", value.Bool(user.IsVerified))
	return value.TableValue(t)
}

// memdbSchema indexes users by id (unique, primary) and email
// (unique), giving MemoryStore O(1) lookups on either key instead of
// the linear email->ID scan a bare map would need.
var memdbSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		"user": {
			Name: "user",
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"email": {
					Name:    "email",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Email"},
				},
			},
		},
	},
}

// MemoryStore is an in-process UserStore, backed by a go-memdb table
// indexed by id and email, used in tests and as the default when no
// database is configured.
type MemoryStore struct {
	db *memdb.MemDB
}

func NewMemoryStore() *MemoryStore {
	db, err := memdb.NewMemDB(memdbSchema)
	if err != nil {
		// memdbSchema is a compile-time constant; a failure here means
		// the schema itself is malformed, which is a programming error.
		panic("auth: invalid memdb schema: " + err.Error())
	}
	return &MemoryStore{db: db}
}

func (m *MemoryStore) Create(ctx context.Context, user *User) error {
	txn := m.db.Txn(true)
	defer txn.Abort()

	if existing, err := txn.First("user", "email", user.Email); err != nil {
		return err
	} else if existing != nil {
		return ErrUserExists
	}
	if user.ID == "" {
		user.ID = generateUUID()
	}
	if err := txn.Insert("user", user); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (m *MemoryStore) ByEmail(ctx context.Context, email string) (*User, error) {
	txn := m.db.Txn(false)
	raw, err := txn.First("user", "email", email)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrUserNotFound
	}
	return raw.(*User), nil
}

func (m *MemoryStore) UpdatePassword(ctx context.Context, id string, passwordDigest string) error {
	txn := m.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First("user", "id", id)
	if err != nil {
		return err
	}
	if raw == nil {
		return ErrUserNotFound
	}
	user := *raw.(*User)
	user.PasswordDigest = passwordDigest
	if err := txn.Insert("user", &user); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (m *MemoryStore) ExistsEmail(ctx context.Context, email string) (bool, error) {
	txn := m.db.Txn(false)
	raw, err := txn.First("user", "email", email)
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

func (m *MemoryStore) ByID(ctx context.Context, id string) (*User, error) {
	txn := m.db.Txn(false)
	raw, err := txn.First("user", "id", id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrUserNotFound
	}
	return raw.(*User), nil
}
