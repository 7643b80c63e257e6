package lecturers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apierrors "github.com/dalemusser/rollcall/internal/app/features/errors"
	"github.com/dalemusser/rollcall/internal/app/features/lecturers"
	"github.com/dalemusser/rollcall/internal/app/store/ledger"
	"github.com/dalemusser/rollcall/internal/app/system/auth"
	"github.com/dalemusser/rollcall/internal/domain/models"
	"github.com/dalemusser/rollcall/internal/testutil"
	"go.uber.org/zap"
)

func newTestRouters(t *testing.T) (http.Handler, http.Handler, *ledger.Memory) {
	t.Helper()
	logger := zap.NewNop()
	l := ledger.NewMemory()
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	h := lecturers.NewHandler(l, apierrors.NewErrorLogger(logger), logger)
	return lecturers.Routes(h, sm), lecturers.CourseRoutes(h, sm), l
}

func post(t *testing.T, router http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(t, "POST", "/", body, testutil.LecturerUser()))
	return rec
}

func TestHandleRegister_CreateThenAdd(t *testing.T) {
	router, courses, _ := newTestRouters(t)

	body := map[string]any{
		"name":    "Ada Lovelace",
		"email":   "Ada@Uni.edu",
		"courses": map[string]string{"courseCode": "cs101", "courseName": "Intro"},
	}
	rec := post(t, router, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Same course again is not duplicated.
	if rec := post(t, router, body); rec.Code != http.StatusOK {
		t.Fatalf("repeat status = %d", rec.Code)
	}

	body["courses"] = map[string]string{"courseCode": "CS202", "courseName": "Systems"}
	rec = post(t, router, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d", rec.Code)
	}
	var resp struct {
		Data models.Lecturer `json:"data"`
	}
	testutil.DecodeJSON(t, rec, &resp)
	if resp.Data.Email != "ada@uni.edu" {
		t.Errorf("email = %q", resp.Data.Email)
	}
	want := []models.SelectedCourse{{CourseCode: "CS101", CourseName: "Intro"}, {CourseCode: "CS202", CourseName: "Systems"}}
	if len(resp.Data.SelectedCourses) != 2 || resp.Data.SelectedCourses[0] != want[0] || resp.Data.SelectedCourses[1] != want[1] {
		t.Errorf("selected = %+v, want %+v", resp.Data.SelectedCourses, want)
	}

	rec = httptest.NewRecorder()
	courses.ServeHTTP(rec, testutil.NewAuthenticatedRequest(t, "GET", "/ada@uni.edu", nil, testutil.LecturerUser()))
	if rec.Code != http.StatusOK {
		t.Fatalf("courses status = %d", rec.Code)
	}
	var cr struct {
		Data struct {
			Courses []models.SelectedCourse `json:"courses"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, rec, &cr)
	if len(cr.Data.Courses) != 2 {
		t.Errorf("courses = %+v", cr.Data.Courses)
	}
}

func TestHandleRegister_Validation(t *testing.T) {
	router, _, l := newTestRouters(t)

	tests := []struct {
		name string
		body map[string]any
		want string
	}{
		{"bad email", map[string]any{"name": "A", "email": "nope", "courses": map[string]string{"courseCode": "CS101", "courseName": "Intro"}}, "A valid email address is required."},
		{"missing course name", map[string]any{"name": "A", "email": "a@uni.edu", "courses": map[string]string{"courseCode": "CS101"}}, "Course name is required."},
		{"blank name", map[string]any{"name": " ", "email": "a@uni.edu", "courses": map[string]string{"courseCode": "CS101", "courseName": "Intro"}}, "Name is required."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, router, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			var resp apierrors.Response
			testutil.DecodeJSON(t, rec, &resp)
			if resp.Message != tt.want {
				t.Errorf("message = %q, want %q", resp.Message, tt.want)
			}
		})
	}
	if _, err := l.FindLecturer(t.Context(), "a@uni.edu"); err == nil {
		t.Error("invalid requests must not create a lecturer")
	}
}

func TestServeCourses_UnknownLecturer(t *testing.T) {
	_, courses, _ := newTestRouters(t)
	rec := httptest.NewRecorder()
	courses.ServeHTTP(rec, testutil.NewAuthenticatedRequest(t, "GET", "/ghost@uni.edu", nil, testutil.LecturerUser()))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
