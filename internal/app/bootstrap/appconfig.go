// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, CORS); everything specific
// to rollcall lives here and is passed to each lifecycle hook.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI      string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase string // Database name within MongoDB

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: rollcall-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Attendance device
	DeviceToken          string        // Shared token the device presents on /device/ws (blank disables the check)
	EnrollTimeout        time.Duration // How long enrollment waits for device feedback
	AttendanceTimeout    time.Duration // How long attendance marking waits for device feedback
	UnenrollTimeout      time.Duration // How long unenrollment waits for device feedback
	MaxPendingOperations int           // Cap on commands awaiting feedback at once
	AttendanceTimezone   string        // IANA zone that decides which day a mark belongs to

	// Audit logging: "all", "db", "log", or "off"
	AuditLogAuth   string
	AuditLogDevice string

	// Per-IP limit on /api
	RateLimitRequests int
	RateLimitWindow   time.Duration
}
