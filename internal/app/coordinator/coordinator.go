// Package coordinator runs the three device workflows (enroll, take
// attendance, unenroll). Each one pairs a ledger change with a command to
// the attendance device and either commits or undoes the change depending
// on what the device reports.
//
// Enrollment writes first and compensates on failure. Attendance and
// unenrollment wait for the device before writing anything.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dalemusser/rollcall/internal/app/store/ledger"
	"github.com/dalemusser/rollcall/internal/app/system/auditlog"
	"github.com/dalemusser/rollcall/internal/app/system/correlator"
	"github.com/dalemusser/rollcall/internal/app/system/keylock"
	"github.com/dalemusser/rollcall/internal/app/system/timeouts"
	"github.com/dalemusser/rollcall/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Ledger is the persistence the workflows need. Find* return
// ledger.ErrNotFound and Create* return ledger.ErrDuplicate; any other
// error is a storage failure.
type Ledger interface {
	FindLecturer(ctx context.Context, email string) (models.Lecturer, error)
	FindCourse(ctx context.Context, code string) (models.Course, error)
	CreateCourse(ctx context.Context, c models.Course) (models.Course, error)
	SaveCourse(ctx context.Context, c models.Course) error
	FindStudent(ctx context.Context, matricNo string) (models.Student, error)
	CreateStudent(ctx context.Context, s models.Student) (models.Student, error)
	SaveStudent(ctx context.Context, s models.Student) error
	DeleteStudent(ctx context.Context, id primitive.ObjectID) error
	FindAttendanceEvent(ctx context.Context, courseID primitive.ObjectID, start, end time.Time) (models.AttendanceEvent, error)
	CreateAttendanceEvent(ctx context.Context, ev models.AttendanceEvent) (models.AttendanceEvent, error)
	SaveAttendanceEvent(ctx context.Context, ev models.AttendanceEvent) error
}

// Channel is the connection to the device.
type Channel interface {
	Send(ctx context.Context, event string, payload any) error
	OnMessage(fn func(event string, data json.RawMessage))
}

// Auditor records workflow outcomes. *auditlog.Logger satisfies it.
type Auditor interface {
	Device(ctx context.Context, ev auditlog.DeviceEvent)
}

// Result is what every workflow returns to its caller.
type Result struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	CorrelationKey string `json:"correlationKey,omitempty"`
}

// Config tunes the workflows. Zero timeouts fall back to the timeouts
// package; a nil Location means UTC.
type Config struct {
	EnrollTimeout     time.Duration
	AttendanceTimeout time.Duration
	UnenrollTimeout   time.Duration

	// Location decides where a calendar day starts for attendance.
	Location *time.Location
	// Now is the attendance clock; defaults to time.Now.
	Now func() time.Time
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	ledger Ledger
	device Channel
	corr   *correlator.Correlator
	locks  *keylock.Locker
	audit  Auditor
	log    *zap.Logger
	cfg    Config
}

// New wires a Coordinator and registers corr as the device's message
// dispatcher.
func New(l Ledger, device Channel, corr *correlator.Correlator, audit Auditor, logger *zap.Logger, cfg Config) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	device.OnMessage(corr.Dispatch)
	return &Coordinator{
		ledger: l,
		device: device,
		corr:   corr,
		locks:  keylock.New(),
		audit:  audit,
		log:    logger,
		cfg:    cfg,
	}
}

func (c *Coordinator) enrollTimeout() time.Duration {
	if c.cfg.EnrollTimeout > 0 {
		return c.cfg.EnrollTimeout
	}
	return timeouts.Enroll()
}

func (c *Coordinator) attendanceTimeout() time.Duration {
	if c.cfg.AttendanceTimeout > 0 {
		return c.cfg.AttendanceTimeout
	}
	return timeouts.Attendance()
}

func (c *Coordinator) unenrollTimeout() time.Duration {
	if c.cfg.UnenrollTimeout > 0 {
		return c.cfg.UnenrollTimeout
	}
	return timeouts.Unenroll()
}

// dayWindow returns [start, end) of the calendar day containing t.
func (c *Coordinator) dayWindow(t time.Time) (start, end time.Time, day string) {
	t = t.In(c.cfg.Location)
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.cfg.Location)
	end = start.AddDate(0, 0, 1)
	return start, end, start.Format(models.DayLayout)
}

// exchange sends one command and waits for the device's answer. A non-nil
// error means the command never reached the device.
func (c *Coordinator) exchange(ctx context.Context, kind correlator.Kind, timeout time.Duration, build func(key string) any) (string, correlator.Outcome, error) {
	h, err := c.corr.Open(kind, time.Now().Add(timeout))
	if err != nil {
		return "", correlator.Outcome{}, err
	}
	if err := c.device.Send(ctx, kind.Command(), build(h.Key)); err != nil {
		c.corr.Cancel(h)
		return h.Key, correlator.Outcome{}, err
	}
	c.log.Debug("device command sent",
		zap.String("event", kind.Command()),
		zap.String("correlation_key", h.Key))
	return h.Key, c.corr.Await(ctx, h), nil
}

// lock takes keys in order; a cancelled wait is reported as ErrCancelled.
func (c *Coordinator) lock(ctx context.Context, keys ...string) (func(), error) {
	unlock, err := c.locks.LockAll(ctx, keys...)
	if err != nil {
		return nil, &Failure{Kind: ErrCancelled, Reason: "Request cancelled", Err: err}
	}
	return unlock, nil
}

// cleanupContext outlives the caller's cancellation so a rollback or commit
// still completes after the client has gone away.
func (c *Coordinator) cleanupContext(ctx context.Context, op string) (context.Context, context.CancelFunc) {
	return timeouts.WithTimeout(context.WithoutCancel(ctx), timeouts.Long(), c.log, op)
}

// record writes the audit event even when the caller has cancelled.
func (c *Coordinator) record(ctx context.Context, ev auditlog.DeviceEvent) {
	if c.audit == nil {
		return
	}
	ctx, cancel := c.cleanupContext(ctx, "audit "+ev.EventType)
	defer cancel()
	c.audit.Device(ctx, ev)
}

func storageFailure(err error) (Result, error) {
	return fail(ErrStorage, "Database error", err)
}

func isNotFound(err error) bool { return errors.Is(err, ledger.ErrNotFound) }

func observe(workflow string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = Code(err)
	}
	workflowDuration.WithLabelValues(workflow, result).Observe(time.Since(start).Seconds())
}

// exchangeFailure turns a failed exchange into a workflow error. deviceReason
// is the message for a device-reported failure.
func exchangeFailure(key string, o correlator.Outcome, sendErr error, deviceReason string) (Result, error) {
	var (
		res Result
		err error
	)
	switch {
	case errors.Is(sendErr, correlator.ErrResourceExhausted):
		res, err = fail(ErrResourceExhausted, "Device is busy, try again shortly", sendErr)
	case sendErr != nil:
		res, err = fail(ErrDeviceError, deviceReason, sendErr)
	case o.Status == correlator.StatusTimeout:
		res, err = fail(ErrTimeout, "Device did not respond in time", nil)
	case o.Status == correlator.StatusCancelled:
		res, err = fail(ErrCancelled, "Request cancelled", nil)
	default:
		var cause error
		if o.Reason != "" {
			cause = errors.New(o.Reason)
		}
		res, err = fail(ErrDeviceError, deviceReason, cause)
	}
	res.CorrelationKey = key
	return res, err
}

// writeFailure reports a failed ledger write, or a cancellation when the
// caller's context ended first.
func writeFailure(ctx context.Context, err error) (Result, error) {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return fail(ErrCancelled, "Request cancelled", err)
	}
	return storageFailure(err)
}
