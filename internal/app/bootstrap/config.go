// internal/app/bootstrap/config.go
package bootstrap

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/dalemusser/rollcall/internal/app/system/correlator"
	"github.com/dalemusser/rollcall/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for rollcall.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: ROLLCALL_MONGO_URI, ROLLCALL_DEVICE_TOKEN, etc.
//   - Command-line flags: --mongo_uri, --device_token, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "rollcall", Desc: "MongoDB database name"},
	{Name: "session_key", Default: "", Desc: "Session signing key (required in production; generated per run in dev)"},
	{Name: "session_name", Default: "rollcall-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime"},

	// Attendance device
	{Name: "device_token", Default: "", Desc: "Shared token the device must present on /device/ws (blank disables)"},
	{Name: "enroll_timeout", Default: "30s", Desc: "How long enrollment waits for device feedback"},
	{Name: "attendance_timeout", Default: "30s", Desc: "How long attendance marking waits for device feedback"},
	{Name: "unenroll_timeout", Default: "30s", Desc: "How long unenrollment waits for device feedback"},
	{Name: "max_pending_operations", Default: correlator.DefaultMaxPending, Desc: "Maximum device commands awaiting feedback at once"},
	{Name: "attendance_timezone", Default: "UTC", Desc: "IANA time zone that decides the attendance day"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_device", Default: "all", Desc: "Device workflow logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// API rate limiting
	{Name: "rate_limit_requests", Default: 100, Desc: "Requests allowed per client IP per window on /api"},
	{Name: "rate_limit_window", Default: "1h", Desc: "Rate limit window"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, ROLLCALL_* for app) and flags,
// merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "ROLLCALL", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:      appValues.String("mongo_uri"),
		MongoDatabase: appValues.String("mongo_database"),
		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 24*time.Hour),

		// Device
		DeviceToken:          appValues.String("device_token"),
		EnrollTimeout:        appValues.Duration("enroll_timeout", timeouts.DefaultEnroll),
		AttendanceTimeout:    appValues.Duration("attendance_timeout", timeouts.DefaultAttendance),
		UnenrollTimeout:      appValues.Duration("unenroll_timeout", timeouts.DefaultUnenroll),
		MaxPendingOperations: appValues.Int("max_pending_operations"),
		AttendanceTimezone:   appValues.String("attendance_timezone"),

		// Audit logging
		AuditLogAuth:   appValues.String("audit_log_auth"),
		AuditLogDevice: appValues.String("audit_log_device"),

		// Rate limiting
		RateLimitRequests: appValues.Int("rate_limit_requests"),
		RateLimitWindow:   appValues.Duration("rate_limit_window", time.Hour),
	}

	ensureSessionKey(coreCfg, &appCfg, logger)
	return coreCfg, appCfg, nil
}

// ensureSessionKey fills an empty session key with a random one outside
// production. Sessions signed with it do not survive a restart.
func ensureSessionKey(coreCfg *config.CoreConfig, appCfg *AppConfig, logger *zap.Logger) {
	if appCfg.SessionKey != "" || (coreCfg != nil && coreCfg.Env == "prod") {
		return
	}
	appCfg.SessionKey = base64.RawURLEncoding.EncodeToString(securecookie.GenerateRandomKey(32))
	logger.Warn("session_key not set; using a random key for this run")
}

var auditSettings = map[string]bool{"all": true, "db": true, "log": true, "off": true}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI is checked here so a typo fails before any connection
// attempt.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.SessionKey == "" {
		return fmt.Errorf("session_key must be set")
	}
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database must be set")
	}

	for name, d := range map[string]time.Duration{
		"enroll_timeout":     appCfg.EnrollTimeout,
		"attendance_timeout": appCfg.AttendanceTimeout,
		"unenroll_timeout":   appCfg.UnenrollTimeout,
		"rate_limit_window":  appCfg.RateLimitWindow,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if appCfg.MaxPendingOperations < 1 {
		return fmt.Errorf("max_pending_operations must be at least 1, got %d", appCfg.MaxPendingOperations)
	}
	if appCfg.RateLimitRequests < 1 {
		return fmt.Errorf("rate_limit_requests must be at least 1, got %d", appCfg.RateLimitRequests)
	}
	if _, err := time.LoadLocation(appCfg.AttendanceTimezone); err != nil {
		return fmt.Errorf("invalid attendance_timezone %q: %w", appCfg.AttendanceTimezone, err)
	}
	if !auditSettings[appCfg.AuditLogAuth] || !auditSettings[appCfg.AuditLogDevice] {
		return fmt.Errorf("audit log settings must be one of all, db, log, off")
	}

	if coreCfg != nil && coreCfg.Env == "prod" && appCfg.DeviceToken == "" {
		logger.Warn("device_token is empty; any client can attach as the attendance device")
	}
	return nil
}
