// Package timeouts provides centralized timeout values for handler
// operations and device round-trips.
//
// Store timeouts are used with context.WithTimeout for database calls in
// HTTP handlers. Device deadlines bound how long a workflow waits for the
// attendance device to answer a command before giving up and compensating.
//
// Timeouts can be configured at startup using Configure(). If not configured,
// sensible defaults are used.
//
// Guidelines for choosing a store timeout:
//   - Ping: health checks and connectivity verification
//   - Short: simple single-document reads or lookups
//   - Medium: list queries, moderate writes, multi-step reads
//   - Long: operations touching multiple collections (workflow commits
//     and compensations)
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second

	DefaultEnroll     = 30 * time.Second
	DefaultAttendance = 30 * time.Second
	DefaultUnenroll   = 30 * time.Second
)

// mu protects all timeout values from concurrent access.
var mu sync.RWMutex

var (
	ping   = DefaultPing
	short  = DefaultShort
	medium = DefaultMedium
	long   = DefaultLong

	enroll     = DefaultEnroll
	attendance = DefaultAttendance
	unenroll   = DefaultUnenroll
)

// Ping returns the timeout for health checks and connectivity verification.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Short returns the timeout for simple operations like single-document reads.
func Short() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return short
}

// Medium returns the timeout for moderate operations like list queries.
func Medium() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return medium
}

// Long returns the timeout for operations touching multiple collections.
func Long() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return long
}

// Enroll returns how long an enrollment waits for enroll_feedback.
func Enroll() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return enroll
}

// Attendance returns how long attendance marking waits for
// attendance_feedback.
func Attendance() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return attendance
}

// Unenroll returns how long an unenrollment waits for delete_feedback.
func Unenroll() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return unenroll
}

// Config holds timeout configuration values.
// Zero values are ignored (defaults are kept).
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration

	Enroll     time.Duration
	Attendance time.Duration
	Unenroll   time.Duration
}

// Configure sets custom timeout values. Zero values in the config are ignored,
// keeping the current (or default) values. This should be called during
// application startup before handlers are registered.
//
// Example:
//
//	timeouts.Configure(timeouts.Config{
//	    Enroll: 45 * time.Second, // slow fingerprint capture
//	})
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	set := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	set(&ping, cfg.Ping)
	set(&short, cfg.Short)
	set(&medium, cfg.Medium)
	set(&long, cfg.Long)
	set(&enroll, cfg.Enroll)
	set(&attendance, cfg.Attendance)
	set(&unenroll, cfg.Unenroll)
}

// Reset restores all timeouts to their default values.
// Useful for testing.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	short = DefaultShort
	medium = DefaultMedium
	long = DefaultLong
	enroll = DefaultEnroll
	attendance = DefaultAttendance
	unenroll = DefaultUnenroll
}

// Current returns the current timeout configuration as a Config struct.
// Useful for logging or debugging.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{
		Ping:       ping,
		Short:      short,
		Medium:     medium,
		Long:       long,
		Enroll:     enroll,
		Attendance: attendance,
		Unenroll:   unenroll,
	}
}

// WithTimeout creates a context with timeout and returns a cancel function that
// logs a warning if the context was canceled due to deadline exceeded.
//
// Example:
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "enrollment rollback")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
