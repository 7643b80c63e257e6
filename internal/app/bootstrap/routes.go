// internal/app/bootstrap/routes.go
package bootstrap

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/rollcall/internal/app/coordinator"
	accountfeature "github.com/dalemusser/rollcall/internal/app/features/account"
	attendancefeature "github.com/dalemusser/rollcall/internal/app/features/attendance"
	auditlogfeature "github.com/dalemusser/rollcall/internal/app/features/auditlog"
	devicefeature "github.com/dalemusser/rollcall/internal/app/features/device"
	enrollmentfeature "github.com/dalemusser/rollcall/internal/app/features/enrollment"
	errorsfeature "github.com/dalemusser/rollcall/internal/app/features/errors"
	healthfeature "github.com/dalemusser/rollcall/internal/app/features/health"
	lecturersfeature "github.com/dalemusser/rollcall/internal/app/features/lecturers"
	"github.com/dalemusser/rollcall/internal/app/store/audit"
	"github.com/dalemusser/rollcall/internal/app/store/ledger"
	userstore "github.com/dalemusser/rollcall/internal/app/store/users"
	"github.com/dalemusser/rollcall/internal/app/system/auditlog"
	"github.com/dalemusser/rollcall/internal/app/system/auth"
	"github.com/dalemusser/rollcall/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. The coordinator built here is the only
// writer of enrollment and attendance state; every workflow endpoint goes
// through it.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Re-read the account on each request so disabled users are signed out.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase))

	loc, err := time.LoadLocation(appCfg.AttendanceTimezone)
	if err != nil {
		return nil, fmt.Errorf("attendance timezone: %w", err)
	}

	errLog := errorsfeature.NewErrorLogger(logger)
	auditStore := audit.New(deps.MongoDatabase)
	auditLog := auditlog.New(auditStore, logger, auditlog.Config{
		Auth:   appCfg.AuditLogAuth,
		Device: appCfg.AuditLogDevice,
	})

	store := ledger.NewMongo(deps.MongoDatabase)
	co := coordinator.New(store, deps.Device, deps.Correlator, auditLog, logger.Named("coordinator"), coordinator.Config{
		Location: loc,
	})

	r := chi.NewRouter()
	r.NotFound(errorsfeature.NotFound)
	r.MethodNotAllowed(errorsfeature.MethodNotAllowed)

	// Global auth middleware: loads SessionUser into context if signed in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Device, deps.Correlator, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", promhttp.Handler())

	// The attendance device dials in here.
	deviceHandler := devicefeature.NewHandler(deps.Device, deps.Correlator, logger)
	r.Mount("/device", devicefeature.Routes(deviceHandler, sessionMgr))

	apiLimiter := ratelimit.New(appCfg.RateLimitRequests, appCfg.RateLimitWindow)
	loginLimiter := ratelimit.NewLoginLimiter()

	accountHandler := accountfeature.NewHandler(userstore.New(deps.MongoDatabase), sessionMgr, loginLimiter, auditLog, errLog, logger)
	lecturersHandler := lecturersfeature.NewHandler(store, errLog, logger)
	enrollmentHandler := enrollmentfeature.NewHandler(co, store, errLog, logger)
	attendanceHandler := attendancefeature.NewHandler(co, store, errLog, logger)
	auditHandler := auditlogfeature.NewHandler(auditStore, errLog, logger)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(apiLimiter.Middleware)

		api.Mount("/auth", accountfeature.Routes(accountHandler))
		api.Mount("/lecturers", lecturersfeature.Routes(lecturersHandler, sessionMgr))
		api.Mount("/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

		api.Route("/courses", func(c chi.Router) {
			c.Mount("/enroll", enrollmentfeature.Routes(enrollmentHandler, sessionMgr))
			c.Mount("/attendance", attendancefeature.Routes(attendanceHandler, sessionMgr))
			c.Mount("/", lecturersfeature.CourseRoutes(lecturersHandler, sessionMgr))
		})
	})

	return r, nil
}
