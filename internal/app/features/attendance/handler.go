// internal/app/features/attendance/handler.go
package attendance

import (
	"context"
	"errors"
	"net/http"
	"time"

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

// Taker runs the attendance workflow.
type Taker interface {
	TakeAttendance(ctx context.Context, req coordinator.AttendanceRequest) (coordinator.Result, error)
}

// Reader loads attendance history.
type Reader interface {
	FindCourse(ctx context.Context, code string) (models.Course, error)
	AttendanceForCourse(ctx context.Context, courseID primitive.ObjectID) ([]models.AttendanceEvent, error)
	StudentsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Student, error)
}

type Handler struct {
	Taker  Taker
	Ledger Reader
	ErrLog *apierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(t Taker, l Reader, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Taker: t, Ledger: l, ErrLog: errLog, Log: logger}
}

type takeInput struct {
	CourseCode string `json:"courseCode" validate:"required,coursecode" label:"Course code"`
	MatricNo   string `json:"matricNo" validate:"required,matricno" label:"Matric number"`
}

// HandleTake handles POST /api/v1/courses/attendance.
func (h *Handler) HandleTake(w http.ResponseWriter, r *http.Request) {
	var in takeInput
	if err := apierrors.Decode(w, r, &in); err != nil {
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apierrors.Invalid(w, res)
		return
	}

	actorID, _ := auth.UserID(r)
	res, err := h.Taker.TakeAttendance(r.Context(), coordinator.AttendanceRequest{
		CourseCode: in.CourseCode,
		MatricNo:   in.MatricNo,
		ActorID:    actorID,
	})
	apierrors.Workflow(w, res, err)
}

type presentView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MatricNo string `json:"matricNo"`
}

type recordView struct {
	ID              string        `json:"id"`
	Day             string        `json:"day"`
	Date            time.Time     `json:"date"`
	StudentsPresent []presentView `json:"studentsPresent"`
}

// ServeRecords handles GET /api/v1/courses/attendance/{courseCode}. Records
// are newest first, with present students expanded.
func (h *Handler) ServeRecords(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
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

	events, err := h.Ledger.AttendanceForCourse(ctx, course.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load attendance failed", err, "A database error occurred.")
		return
	}

	// One lookup for every student seen across all days.
	var ids []primitive.ObjectID
	seen := map[primitive.ObjectID]bool{}
	for _, ev := range events {
		for _, id := range ev.StudentsPresent {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	byID := map[primitive.ObjectID]models.Student{}
	if len(ids) > 0 {
		students, err := h.Ledger.StudentsByIDs(ctx, ids)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "load present students failed", err, "A database error occurred.")
			return
		}
		for _, s := range students {
			byID[s.ID] = s
		}
	}

	records := make([]recordView, 0, len(events))
	for _, ev := range events {
		rv := recordView{
			ID:              ev.ID.Hex(),
			Day:             ev.Day,
			Date:            ev.Date,
			StudentsPresent: make([]presentView, 0, len(ev.StudentsPresent)),
		}
		for _, id := range ev.StudentsPresent {
			s, ok := byID[id]
			if !ok {
				// Unenrolled students keep their record, so this only
				// happens after a manual delete.
				continue
			}
			rv.StudentsPresent = append(rv.StudentsPresent, presentView{ID: s.ID.Hex(), Name: s.Name, MatricNo: s.MatricNo})
		}
		records = append(records, rv)
	}

	apierrors.OK(w, http.StatusOK, "", map[string]any{
		"courseCode":        course.Code,
		"attendanceRecords": records,
	})
}
