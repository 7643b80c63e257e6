package account_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/rollcall/internal/app/features/account"
	apierrors "github.com/dalemusser/rollcall/internal/app/features/errors"
	"github.com/dalemusser/rollcall/internal/app/store/audit"
	userstore "github.com/dalemusser/rollcall/internal/app/store/users"
	"github.com/dalemusser/rollcall/internal/app/system/auditlog"
	"github.com/dalemusser/rollcall/internal/app/system/auth"
	"github.com/dalemusser/rollcall/internal/app/system/normalize"
	"github.com/dalemusser/rollcall/internal/app/system/ratelimit"
	"github.com/dalemusser/rollcall/internal/domain/models"
	"github.com/dalemusser/rollcall/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	account.BcryptCost = bcrypt.MinCost
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[normalize.Email(email)]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &u, nil
}

func (m *memUsers) Create(_ context.Context, u models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = normalize.Email(u.Email)
	if _, ok := m.users[u.Email]; ok {
		return models.User{}, userstore.ErrDuplicateEmail
	}
	u.ID = primitive.NewObjectID()
	u.Active = true
	u.CreatedAt = time.Now().UTC()
	m.users[u.Email] = u
	return u, nil
}

type testEnv struct {
	router http.Handler
	sm     *auth.SessionManager
	users  *memUsers
	logs   *observer.ObservedLogs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	limiter := ratelimit.NewLoginLimiter()
	t.Cleanup(limiter.Close)
	users := &memUsers{users: map[string]models.User{}}
	h := account.NewHandler(users, sm, limiter, auditlog.New(nil, logger, auditlog.Config{}), apierrors.NewErrorLogger(logger), logger)
	return &testEnv{router: account.Routes(h), sm: sm, users: users, logs: logs}
}

func (e *testEnv) do(t *testing.T, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, testutil.NewJSONRequest(t, "POST", target, body))
	return rec
}

func (e *testEnv) audited(eventType string) int {
	return e.logs.FilterField(zap.String("event_type", eventType)).Len()
}

func signupBody() map[string]string {
	return map[string]string{
		"name":            "Ada Lovelace",
		"email":           "Ada@Uni.edu",
		"password":        "Str0ng!Pass",
		"confirmPassword": "Str0ng!Pass",
	}
}

func TestHandleSignup(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "/signup", signupBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("signup should set a session cookie")
	}
	if env.audited(audit.EventSignup) != 1 {
		t.Error("signup should be audited")
	}
	u, _ := env.users.GetByEmail(context.Background(), "ada@uni.edu")
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("Str0ng!Pass")) != nil {
		t.Fatal("stored password hash does not match")
	}
	if strings.Contains(rec.Body.String(), u.PasswordHash) {
		t.Error("response leaks the password hash")
	}

	// The cookie signs later requests in.
	protected := env.sm.LoadSessionUser(env.sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.UserID(r)
		if id != u.ID.Hex() {
			t.Errorf("session user = %q, want %q", id, u.ID.Hex())
		}
		w.WriteHeader(http.StatusNoContent)
	})))
	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec2 := httptest.NewRecorder()
	protected.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusNoContent {
		t.Errorf("protected status = %d", rec2.Code)
	}

	if rec := env.do(t, "/signup", signupBody()); rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}
}

func TestHandleSignup_Validation(t *testing.T) {
	env := newTestEnv(t)

	mismatch := signupBody()
	mismatch["confirmPassword"] = "Other!Pass1"
	weak := signupBody()
	weak["password"], weak["confirmPassword"] = "password", "password"
	noEmail := signupBody()
	delete(noEmail, "email")

	tests := []struct {
		name  string
		body  map[string]string
		field string
	}{
		{"mismatched confirmation", mismatch, "Password confirmation"},
		{"weak password", weak, "Password"},
		{"missing email", noEmail, "Email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "/signup", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			var resp apierrors.Response
			testutil.DecodeJSON(t, rec, &resp)
			found := false
			for _, fe := range resp.Fields {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("fields = %+v, want an error for %q", resp.Fields, tt.field)
			}
		})
	}
}

func TestHandleLogin(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, "/signup", signupBody()); rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d", rec.Code)
	}

	tests := []struct {
		name     string
		email    string
		password string
		status   int
		event    string
	}{
		{"success", "ada@uni.edu", "Str0ng!Pass", http.StatusOK, audit.EventLoginSuccess},
		{"wrong password", "ada@uni.edu", "Wrong!Pass1", http.StatusUnauthorized, audit.EventLoginFailedWrongPassword},
		{"unknown account", "bob@uni.edu", "Str0ng!Pass", http.StatusUnauthorized, audit.EventLoginFailedUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := env.audited(tt.event)
			rec := env.do(t, "/login", map[string]string{"email": tt.email, "password": tt.password})
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if env.audited(tt.event) != before+1 {
				t.Errorf("expected one %s audit event", tt.event)
			}
		})
	}
}

func TestHandleLogin_Disabled(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, "/signup", signupBody())
	env.users.mu.Lock()
	u := env.users.users["ada@uni.edu"]
	u.Active = false
	env.users.users["ada@uni.edu"] = u
	env.users.mu.Unlock()

	rec := env.do(t, "/login", map[string]string{"email": "ada@uni.edu", "password": "Str0ng!Pass"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if env.audited(audit.EventLoginFailedUserDisabled) != 1 {
		t.Error("disabled login should be audited")
	}
}

func TestHandleLogin_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		last = env.do(t, "/login", map[string]string{"email": "ada@uni.edu", "password": "Wrong!Pass1"})
	}
	if last.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", last.Code)
	}
	if env.audited(audit.EventLoginFailedRateLimit) != 1 {
		t.Error("rate-limited login should be audited")
	}
}

func TestHandleLogout(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(t, "POST", "/logout", nil, testutil.LecturerUser()))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 || cookies[0].MaxAge >= 0 {
		t.Errorf("logout should expire the session cookie, got %+v", cookies)
	}
	if env.audited(audit.EventLogout) != 1 {
		t.Error("logout should be audited")
	}
}
