// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/dalemusser/rollcall/internal/app/coordinator"
	"github.com/dalemusser/rollcall/internal/app/system/auth"
	"github.com/dalemusser/rollcall/internal/app/system/htmlsanitize"
	"github.com/dalemusser/rollcall/internal/app/system/inputval"
	"go.uber.org/zap"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 10 << 10

// Response is the envelope every API endpoint answers with.
type Response struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Code    string                `json:"code,omitempty"`
	Data    any                   `json:"data,omitempty"`
	Fields  []inputval.FieldError `json:"fields,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a successful envelope.
func OK(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Response{Success: true, Message: message, Data: data})
}

// Fail writes a failed envelope.
func Fail(w http.ResponseWriter, status int, message, code string) {
	JSON(w, status, Response{Success: false, Message: message, Code: code})
}

// Invalid writes a 400 listing every failed field.
func Invalid(w http.ResponseWriter, res *inputval.Result) {
	JSON(w, http.StatusBadRequest, Response{
		Success: false,
		Message: res.First(),
		Code:    "invalid",
		Fields:  res.Errors,
	})
}

// WorkflowResponse is a device workflow's result with its failure code.
type WorkflowResponse struct {
	coordinator.Result
	Code string `json:"code,omitempty"`
}

// Workflow writes the outcome of a device workflow.
func Workflow(w http.ResponseWriter, res coordinator.Result, err error) {
	if err != nil {
		res.Success = false
		res.Message = coordinator.Reason(err)
	}
	JSON(w, coordinator.StatusCode(err), WorkflowResponse{Result: res, Code: coordinator.Code(err)})
}

// ErrDecode is returned by Decode for any unreadable body.
var ErrDecode = stderrors.New("invalid request body")

// Decode reads a JSON body of at most MaxBodyBytes into v. On failure it
// has already written the response.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooBig):
			Fail(w, http.StatusRequestEntityTooLarge, "Request body too large", "too_large")
		case stderrors.Is(err, io.EOF):
			Fail(w, http.StatusBadRequest, "Request body is required", "invalid")
		default:
			Fail(w, http.StatusBadRequest, "Invalid JSON body", "invalid")
		}
		return ErrDecode
	}
	return nil
}

// Clean strips markup from free text before it is stored.
func Clean(s string) string { return htmlsanitize.Text(s) }

// ErrorLogger logs failures with request context and answers the client
// with a generic message.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Log: logger}
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	fs := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	}
	if u, ok := auth.CurrentUser(r); ok {
		fs = append(fs, zap.String("user_id", u.ID))
	}
	return fs
}

// LogServerError logs at Error and writes a 500 with userMsg.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, logMsg string, err error, userMsg string) {
	e.Log.Error(logMsg, e.fields(r, err)...)
	Fail(w, http.StatusInternalServerError, userMsg, "internal")
}

// LogBadRequest logs at Warn and writes a 400 with userMsg.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, logMsg string, err error, userMsg string) {
	e.Log.Warn(logMsg, e.fields(r, err)...)
	Fail(w, http.StatusBadRequest, userMsg, "invalid")
}

// NotFound answers unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Fail(w, http.StatusNotFound, "Not found", "not_found")
}

// MethodNotAllowed answers known routes with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Fail(w, http.StatusMethodNotAllowed, "Method not allowed", "method_not_allowed")
}
