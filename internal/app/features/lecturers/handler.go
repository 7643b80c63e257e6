// internal/app/features/lecturers/handler.go
package lecturers

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/rollcall/internal/app/features/errors"
	"github.com/dalemusser/rollcall/internal/app/store/ledger"
	"github.com/dalemusser/rollcall/internal/app/system/inputval"
	"github.com/dalemusser/rollcall/internal/app/system/timeouts"
	"github.com/dalemusser/rollcall/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Registry is the lecturer side of the ledger.
type Registry interface {
	FindLecturer(ctx context.Context, email string) (models.Lecturer, error)
	AddLecturerCourse(ctx context.Context, name, email string, course models.SelectedCourse) (models.Lecturer, bool, error)
}

type Handler struct {
	Registry Registry
	ErrLog   *apierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(reg Registry, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Registry: reg, ErrLog: errLog, Log: logger}
}

type courseInput struct {
	CourseCode string `json:"courseCode" validate:"required,coursecode" label:"Course code"`
	CourseName string `json:"courseName" validate:"notblank,max=200" label:"Course name"`
}

type registerInput struct {
	Name    string      `json:"name" validate:"notblank,max=200" label:"Name"`
	Email   string      `json:"email" validate:"required,email" label:"Email"`
	Courses courseInput `json:"courses"`
}

// HandleRegister handles POST /api/v1/lecturers. The lecturer is created
// on first use; later calls add the course to their selection unless it is
// already there.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if err := apierrors.Decode(w, r, &in); err != nil {
		return
	}
	in.Name = apierrors.Clean(in.Name)
	in.Courses.CourseName = apierrors.Clean(in.Courses.CourseName)
	if res := inputval.Validate(in); res.HasErrors() {
		apierrors.Invalid(w, res)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	lec, created, err := h.Registry.AddLecturerCourse(ctx, in.Name, in.Email, models.SelectedCourse{
		CourseCode: in.Courses.CourseCode,
		CourseName: in.Courses.CourseName,
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "register lecturer failed", err, "A database error occurred.")
		return
	}

	status, msg := http.StatusOK, "Lecturer updated"
	if created {
		status, msg = http.StatusCreated, "Lecturer created"
		h.Log.Info("lecturer created", zap.String("lecturer_email", lec.Email))
	}
	apierrors.OK(w, status, msg, lec)
}

// ServeCourses handles GET /api/v1/courses/{lecturerEmail}.
func (h *Handler) ServeCourses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	lec, err := h.Registry.FindLecturer(ctx, chi.URLParam(r, "lecturerEmail"))
	if errors.Is(err, ledger.ErrNotFound) {
		apierrors.Fail(w, http.StatusNotFound, "Lecturer not found", "not_found")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load lecturer failed", err, "A database error occurred.")
		return
	}
	apierrors.OK(w, http.StatusOK, "", map[string]any{"courses": lec.SelectedCourses})
}
