package attendance_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/rollcall/internal/app/coordinator"
	"github.com/dalemusser/rollcall/internal/app/features/attendance"
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
	co     *coordinator.Coordinator
	ledger *ledger.Memory
	device *testutil.FakeDevice
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	env := &testEnv{
		ledger: ledger.NewMemory(),
		device: testutil.NewFakeDevice(),
		now:    time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
	}
	env.ledger.PutLecturer(models.Lecturer{Name: "Ada", Email: "ada@uni.edu"})
	env.co = coordinator.New(env.ledger, env.device, correlator.New(0, logger), nil, logger, coordinator.Config{
		AttendanceTimeout: 100 * time.Millisecond,
		Now:               func() time.Time { return env.now },
	})

	sm, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	h := attendance.NewHandler(env.co, env.ledger, apierrors.NewErrorLogger(logger), logger)
	env.router = attendance.Routes(h, sm)
	return env
}

func (e *testEnv) enroll(t *testing.T, matric, name string) {
	t.Helper()
	_, err := e.co.Enroll(context.Background(), coordinator.EnrollRequest{
		LecturerEmail: "ada@uni.edu",
		CourseCode:    "CS101",
		CourseName:    "Intro",
		StudentName:   name,
		MatricNo:      matric,
	})
	if err != nil {
		t.Fatalf("Enroll %s: %v", matric, err)
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewAuthenticatedRequest(t, method, target, body, testutil.LecturerUser())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleTake(t *testing.T) {
	env := newTestEnv(t)
	env.enroll(t, "M100", "Ada Student")
	body := map[string]string{"courseCode": "cs101", "matricNo": "m100"}

	rec := env.do(t, "POST", "/", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp apierrors.WorkflowResponse
	testutil.DecodeJSON(t, rec, &resp)
	if resp.Message != "Attendance marked successfully" {
		t.Errorf("message = %q", resp.Message)
	}

	sent := len(env.device.Sent())
	rec = env.do(t, "POST", "/", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second mark status = %d, want 409", rec.Code)
	}
	testutil.DecodeJSON(t, rec, &resp)
	if resp.Code != "already_marked" {
		t.Errorf("code = %q", resp.Code)
	}
	if len(env.device.Sent()) != sent {
		t.Error("second mark must not send a device command")
	}
}

func TestHandleTake_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.enroll(t, "M100", "Ada Student")

	tests := []struct {
		name       string
		body       any
		silent     bool
		wantStatus int
		wantCode   string
	}{
		{"invalid body", map[string]string{"courseCode": "CS101"}, false, http.StatusBadRequest, "invalid"},
		{"unknown course", map[string]string{"courseCode": "XX100", "matricNo": "M100"}, false, http.StatusNotFound, "not_found"},
		{"unknown student", map[string]string{"courseCode": "CS101", "matricNo": "M999"}, false, http.StatusNotFound, "not_found"},
		{"device timeout", map[string]string{"courseCode": "CS101", "matricNo": "M100"}, true, http.StatusGatewayTimeout, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.silent {
				env.device.SetReply(nil)
				defer env.device.SetReply(testutil.DeviceSucceeds)
			}
			rec := env.do(t, "POST", "/", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var resp apierrors.Response
			testutil.DecodeJSON(t, rec, &resp)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestServeRecords(t *testing.T) {
	env := newTestEnv(t)
	env.enroll(t, "M100", "Ada Student")
	env.enroll(t, "M200", "Ben Student")
	take := func(matric string) {
		t.Helper()
		if rec := env.do(t, "POST", "/", map[string]string{"courseCode": "CS101", "matricNo": matric}); rec.Code != http.StatusOK {
			t.Fatalf("take %s: status %d", matric, rec.Code)
		}
	}
	take("M100")
	take("M200")
	env.now = env.now.Add(24 * time.Hour)
	take("M100")

	rec := env.do(t, "GET", "/CS101", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			Records []struct {
				Day             string `json:"day"`
				StudentsPresent []struct {
					MatricNo string `json:"matricNo"`
				} `json:"studentsPresent"`
			} `json:"attendanceRecords"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, rec, &resp)
	recs := resp.Data.Records
	if len(recs) != 2 {
		t.Fatalf("records = %+v", recs)
	}
	if recs[0].Day != "2026-05-05" || len(recs[0].StudentsPresent) != 1 {
		t.Errorf("newest record = %+v", recs[0])
	}
	if recs[1].Day != "2026-05-04" || len(recs[1].StudentsPresent) != 2 {
		t.Errorf("oldest record = %+v", recs[1])
	}

	rec = env.do(t, "GET", "/NOPE1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown course status = %d", rec.Code)
	}
}
