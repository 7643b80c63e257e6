// internal/app/features/account/handler.go
package account

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/rollcall/internal/app/features/errors"
	userstore "github.com/dalemusser/rollcall/internal/app/store/users"
	"github.com/dalemusser/rollcall/internal/app/system/auditlog"
	"github.com/dalemusser/rollcall/internal/app/system/auth"
	"github.com/dalemusser/rollcall/internal/app/system/inputval"
	"github.com/dalemusser/rollcall/internal/app/system/ratelimit"
	"github.com/dalemusser/rollcall/internal/app/system/timeouts"
	"github.com/dalemusser/rollcall/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for stored password hashes.
var BcryptCost = 12

// badCredentials is deliberately the same for unknown accounts and wrong
// passwords.
const badCredentials = "Incorrect email or password"

// Users is the account store. GetByEmail reports a missing account as
// mongo.ErrNoDocuments.
type Users interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u models.User) (models.User, error)
}

type Handler struct {
	Users      Users
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.LoginLimiter
	AuditLog   *auditlog.Logger
	ErrLog     *apierrors.ErrorLogger
	Log        *zap.Logger
}

func NewHandler(users Users, sm *auth.SessionManager, limiter *ratelimit.LoginLimiter, audit *auditlog.Logger, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      users,
		SessionMgr: sm,
		Limiter:    limiter,
		AuditLog:   audit,
		ErrLog:     errLog,
		Log:        logger,
	}
}

type signupInput struct {
	Name            string `json:"name" validate:"notblank,max=200" label:"Name"`
	Email           string `json:"email" validate:"required,email" label:"Email"`
	Password        string `json:"password" validate:"required,password" label:"Password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password" label:"Password confirmation"`
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
}

func sessionUser(u models.User) auth.SessionUser {
	return auth.SessionUser{ID: u.ID.Hex(), Name: u.Name, Email: u.Email}
}

// HandleSignup handles POST /api/v1/auth/signup. The new account is signed
// in straight away.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var in signupInput
	if err := apierrors.Decode(w, r, &in); err != nil {
		return
	}
	in.Name = apierrors.Clean(in.Name)
	if res := inputval.Validate(in); res.HasErrors() {
		apierrors.Invalid(w, res)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), BcryptCost)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "hash password failed", err, "Could not create account.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.Create(ctx, models.User{Name: in.Name, Email: in.Email, PasswordHash: string(hash)})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		apierrors.Fail(w, http.StatusConflict, "An account with this email already exists", "email_taken")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create user failed", err, "A database error occurred.")
		return
	}

	if err := h.SessionMgr.SignIn(w, r, sessionUser(u)); err != nil {
		h.ErrLog.LogServerError(w, r, "save session failed", err, "Could not sign in.")
		return
	}
	h.AuditLog.Signup(ctx, r, u.ID, u.Email)
	apierrors.OK(w, http.StatusCreated, "Account created", u)
}

// HandleLogin handles POST /api/v1/auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := apierrors.Decode(w, r, &in); err != nil {
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apierrors.Invalid(w, res)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r, in.Email); !ok {
			h.AuditLog.LoginFailedRateLimit(ctx, r, in.Email, reason)
			apierrors.Fail(w, http.StatusTooManyRequests, reason, "rate_limited")
			return
		}
	}

	u, err := h.Users.GetByEmail(ctx, in.Email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.AuditLog.LoginFailedUserNotFound(ctx, r, in.Email)
		apierrors.Fail(w, http.StatusUnauthorized, badCredentials, "unauthorized")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load user failed", err, "A database error occurred.")
		return
	}
	if !u.Active {
		h.AuditLog.LoginFailedUserDisabled(ctx, r, u.ID, u.Email)
		apierrors.Fail(w, http.StatusForbidden, "This account has been disabled", "disabled")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		h.AuditLog.LoginFailedWrongPassword(ctx, r, u.ID, u.Email)
		apierrors.Fail(w, http.StatusUnauthorized, badCredentials, "unauthorized")
		return
	}

	if err := h.SessionMgr.SignIn(w, r, sessionUser(*u)); err != nil {
		h.ErrLog.LogServerError(w, r, "save session failed", err, "Could not sign in.")
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetEmail(in.Email)
	}
	h.AuditLog.LoginSuccess(ctx, r, u.ID, u.Email)
	apierrors.OK(w, http.StatusOK, "Signed in", u)
}

// HandleLogout handles POST /api/v1/auth/logout. Signing out an anonymous
// request is not an error.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if id, err := auth.UserID(r); err == nil {
		h.AuditLog.Logout(r.Context(), r, id)
	}
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
	}
	apierrors.OK(w, http.StatusOK, "Signed out", nil)
}
