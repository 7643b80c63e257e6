// internal/app/features/enrollment/handler.go
package enrollment

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/rollcall/internal/app/coordinator"
	apierrors "github.com/dalemusser/rollcall/internal/app/features/errors"
	"github.com/dalemusser/rollcall/internal/app/store/ledger"
	"github.com/dalemusser/rollcall/internal/app/system/auth"
	"github.com/dalemusser/rollcall/internal/app/system/inputval"
	"github.com/dalemusser/rollcall/internal/app/system/timeouts"
	"github.com/dalemusser/rollcall/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Workflows runs the device-backed enrollment changes.
type Workflows interface {
	Enroll(ctx context.Context, req coordinator.EnrollRequest) (coordinator.Result, error)
	Unenroll(ctx context.Context, req coordinator.UnenrollRequest) (coordinator.Result, error)
}

// Reader loads what the enrolled-students listing needs.
type Reader interface {
	FindCourse(ctx context.Context, code string) (models.Course, error)
	StudentsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Student, error)
}

type Handler struct {
	Workflows Workflows
	Ledger    Reader
	ErrLog    *apierrors.ErrorLogger
	Log       *zap.Logger
}

func NewHandler(wf Workflows, l Reader, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Workflows: wf,
		Ledger:    l,
		ErrLog:    errLog,
		Log:       logger,
	}
}

type enrollInput struct {
	CourseCode string `json:"courseCode" validate:"required,coursecode" label:"Course code"`
	CourseName string `json:"courseName" validate:"max=200" label:"Course name"`
	Name       string `json:"name" validate:"notblank,max=200" label:"Student name"`
	MatricNo   string `json:"matricNo" validate:"required,matricno" label:"Matric number"`
}

// HandleEnroll handles POST /api/v1/courses/enroll/{lecturerEmail}.
func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	var in enrollInput
	if err := apierrors.Decode(w, r, &in); err != nil {
		return
	}
	in.Name = apierrors.Clean(in.Name)
	in.CourseName = apierrors.Clean(in.CourseName)
	if res := inputval.Validate(in); res.HasErrors() {
		apierrors.Invalid(w, res)
		return
	}

	email := chi.URLParam(r, "lecturerEmail")
	if !inputval.IsValidEmail(email) {
		apierrors.Fail(w, http.StatusBadRequest, "A valid lecturer email is required.", "invalid")
		return
	}

	actorID, _ := auth.UserID(r)
	res, err := h.Workflows.Enroll(r.Context(), coordinator.EnrollRequest{
		LecturerEmail: email,
		CourseCode:    in.CourseCode,
		CourseName:    in.CourseName,
		StudentName:   in.Name,
		MatricNo:      in.MatricNo,
		ActorID:       actorID,
	})
	apierrors.Workflow(w, res, err)
}

// HandleUnenroll handles DELETE /api/v1/courses/enroll/{courseCode}/{matricNo}.
func (h *Handler) HandleUnenroll(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "courseCode")
	matric := chi.URLParam(r, "matricNo")
	if !inputval.IsValidCourseCode(code) || !inputval.IsValidMatricNo(matric) {
		apierrors.Fail(w, http.StatusBadRequest, "A valid course code and matric number are required.", "invalid")
		return
	}

	actorID, _ := auth.UserID(r)
	res, err := h.Workflows.Unenroll(r.Context(), coordinator.UnenrollRequest{
		CourseCode: code,
		MatricNo:   matric,
		ActorID:    actorID,
	})
	apierrors.Workflow(w, res, err)
}

type studentView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MatricNo string `json:"matricNo"`
}

// ServeEnrolled handles GET /api/v1/courses/enroll/{courseCode}.
func (h *Handler) ServeEnrolled(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	course, err := h.Ledger.FindCourse(ctx, chi.URLParam(r, "courseCode"))
	if errors.Is(err, ledger.ErrNotFound) {
		apierrors.Fail(w, http.StatusNotFound, "Course not found", "not_found")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load course failed", err, "A database error occurred.")
		return
	}

	students, err := h.Ledger.StudentsByIDs(ctx, course.Students)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load enrolled students failed", err, "A database error occurred.")
		return
	}

	out := make([]studentView, 0, len(students))
	for _, s := range students {
		out = append(out, studentView{ID: s.ID.Hex(), Name: s.Name, MatricNo: s.MatricNo})
	}
	apierrors.OK(w, http.StatusOK, "", map[string]any{
		"courseCode": course.Code,
		"students":   out,
	})
}
