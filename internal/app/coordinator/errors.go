package coordinator

import (
	"errors"
	"net/http"
)

// Failure kinds. Every error a workflow returns is a *Failure whose Kind is
// one of these; match with errors.Is.
var (
	ErrInvalid           = errors.New("invalid request")
	ErrNotFound          = errors.New("not found")
	ErrNotEnrolled       = errors.New("student not enrolled in course")
	ErrAlreadyMarked     = errors.New("attendance already marked")
	ErrDeviceError       = errors.New("device reported failure")
	ErrTimeout           = errors.New("device did not respond")
	ErrCancelled         = errors.New("request cancelled")
	ErrResourceExhausted = errors.New("too many pending device operations")
	ErrStorage           = errors.New("storage failure")

	// ErrCompensationFailed marks a rollback that did not complete. It is
	// always reported with Kind ErrStorage and leaves a known-inconsistent
	// record behind.
	ErrCompensationFailed = errors.New("compensation failed")
)

// Failure is a workflow error. Reason is safe to show to the user.
type Failure struct {
	Kind   error
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return f.Reason + ": " + f.Err.Error()
	}
	return f.Reason
}

func (f *Failure) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Err}
}

func fail(kind error, reason string, err error) (Result, error) {
	return Result{Success: false, Message: reason}, &Failure{Kind: kind, Reason: reason, Err: err}
}

// Reason returns the user-facing message for err.
func Reason(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return "Internal server error"
}

// StatusCode maps a workflow error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrStorage):
		return http.StatusInternalServerError
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotEnrolled):
		return http.StatusBadRequest
	case errors.Is(err, ErrAlreadyMarked):
		return http.StatusConflict
	case errors.Is(err, ErrDeviceError):
		return http.StatusBadGateway
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrCancelled):
		return http.StatusRequestTimeout
	case errors.Is(err, ErrResourceExhausted):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Code returns a short machine-readable name for err's kind.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCompensationFailed):
		return "compensation_failed"
	case errors.Is(err, ErrStorage):
		return "storage_error"
	case errors.Is(err, ErrInvalid):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotEnrolled):
		return "not_enrolled"
	case errors.Is(err, ErrAlreadyMarked):
		return "already_marked"
	case errors.Is(err, ErrDeviceError):
		return "device_error"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrResourceExhausted):
		return "resource_exhausted"
	}
	return "internal"
}
