package enrollment_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/rollcall/internal/app/coordinator"
	"github.com/dalemusser/rollcall/internal/app/features/enrollment"
	apierrors "github.com/dalemusser/rollcall/internal/app/features/errors"
	"github.com/dalemusser/rollcall/internal/app/store/ledger"
	"github.com/dalemusser/rollcall/internal/app/system/auth"
	"github.com/dalemusser/rollcall/internal/app/system/correlator"
	"github.com/dalemusser/rollcall/internal/domain/models"
	"github.com/dalemusser/rollcall/internal/testutil"
	"go.uber.org/zap"
)

type testEnv struct {
	router http.Handler
	ledger *ledger.Memory
	device *testutil.FakeDevice
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	l := ledger.NewMemory()
	l.PutLecturer(models.Lecturer{Name: "Ada", Email: "ada@uni.edu"})
	dev := testutil.NewFakeDevice()
	co := coordinator.New(l, dev, correlator.New(0, logger), nil, logger, coordinator.Config{
		EnrollTimeout:   100 * time.Millisecond,
		UnenrollTimeout: 100 * time.Millisecond,
	})

	sm, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	h := enrollment.NewHandler(co, l, apierrors.NewErrorLogger(logger), logger)
	return &testEnv{router: enrollment.Routes(h, sm), ledger: l, device: dev}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewAuthenticatedRequest(t, method, target, body, testutil.LecturerUser())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func enrollBody(matric string) map[string]string {
	return map[string]string{
		"courseCode": "CS101",
		"courseName": "Intro to Computing",
		"name":       "Student " + matric,
		"matricNo":   matric,
	}
}

func TestHandleEnroll_Success(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/ada@uni.edu", enrollBody("M100"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp apierrors.WorkflowResponse
	testutil.DecodeJSON(t, rec, &resp)
	if !resp.Success || resp.Message != "Enrollment Success" || resp.CorrelationKey == "" {
		t.Errorf("response = %+v", resp)
	}
	if _, err := env.ledger.FindStudent(context.Background(), "M100"); err != nil {
		t.Errorf("student not stored: %v", err)
	}
}

func TestHandleEnroll_DeviceFailure(t *testing.T) {
	env := newTestEnv(t)
	env.device.SetReply(testutil.DeviceFails("device busy"))

	rec := env.do(t, "POST", "/ada@uni.edu", enrollBody("M100"))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp apierrors.WorkflowResponse
	testutil.DecodeJSON(t, rec, &resp)
	if resp.Success || resp.Message != "Enrollment failed" || resp.Code != "device_error" {
		t.Errorf("response = %+v", resp)
	}
	if _, err := env.ledger.FindStudent(context.Background(), "M100"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("student should be rolled back, err=%v", err)
	}
}

func TestHandleEnroll_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		target string
		body   map[string]string
		want   string
	}{
		{"missing matric", "/ada@uni.edu", map[string]string{"courseCode": "CS101", "name": "A"}, "Matric number is required."},
		{"bad course code", "/ada@uni.edu", map[string]string{"courseCode": "CS-101!", "name": "A", "matricNo": "M1"}, "Course code may contain only letters and digits."},
		{"markup-only name", "/ada@uni.edu", map[string]string{"courseCode": "CS101", "name": "<script></script>", "matricNo": "M1"}, "Student name is required."},
		{"bad lecturer email", "/not-an-email", enrollBody("M1"), "A valid lecturer email is required."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", tt.target, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			var resp apierrors.Response
			testutil.DecodeJSON(t, rec, &resp)
			if resp.Message != tt.want {
				t.Errorf("message = %q, want %q", resp.Message, tt.want)
			}
		})
	}
	if len(env.device.Sent()) != 0 {
		t.Error("invalid requests must not reach the device")
	}
}

func TestHandleEnroll_SanitizesName(t *testing.T) {
	env := newTestEnv(t)
	body := enrollBody("M100")
	body["name"] = `<b>Ada</b><script>alert(1)</script>`

	rec := env.do(t, "POST", "/ada@uni.edu", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	s, err := env.ledger.FindStudent(context.Background(), "M100")
	if err != nil {
		t.Fatalf("FindStudent: %v", err)
	}
	if strings.ContainsAny(s.Name, "<>") || !strings.Contains(s.Name, "Ada") {
		t.Errorf("stored name = %q", s.Name)
	}
}

func TestHandleUnenroll(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, "POST", "/ada@uni.edu", enrollBody("M100"))

	rec := env.do(t, "DELETE", "/CS101/M100", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp apierrors.WorkflowResponse
	testutil.DecodeJSON(t, rec, &resp)
	if resp.Message != "Student deleted from course successfully" {
		t.Errorf("message = %q", resp.Message)
	}

	rec = env.do(t, "DELETE", "/CS101/M100", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("second unenroll status = %d, want 400", rec.Code)
	}
}

func TestServeEnrolled(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, "POST", "/ada@uni.edu", enrollBody("M200"))
	env.do(t, "POST", "/ada@uni.edu", enrollBody("M100"))

	rec := env.do(t, "GET", "/CS101", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			CourseCode string `json:"courseCode"`
			Students   []struct {
				Name     string `json:"name"`
				MatricNo string `json:"matricNo"`
			} `json:"students"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, rec, &resp)
	if len(resp.Data.Students) != 2 {
		t.Fatalf("students = %+v", resp.Data.Students)
	}
	if resp.Data.Students[0].MatricNo != "M100" {
		t.Errorf("students should be sorted by name, got %+v", resp.Data.Students)
	}

	rec = env.do(t, "GET", "/XX999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown course status = %d, want 404", rec.Code)
	}
}

func TestRoutes_RequireSignIn(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest("GET", "/CS101", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
