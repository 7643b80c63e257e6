package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/rollcall/internal/app/store/ledger"
	"github.com/dalemusser/rollcall/internal/app/system/indexes"
	"github.com/dalemusser/rollcall/internal/domain/models"
	"github.com/dalemusser/rollcall/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// store is the method set both implementations share.
type store interface {
	FindLecturer(ctx context.Context, email string) (models.Lecturer, error)
	AddLecturerCourse(ctx context.Context, name, email string, course models.SelectedCourse) (models.Lecturer, bool, error)
	FindCourse(ctx context.Context, code string) (models.Course, error)
	CreateCourse(ctx context.Context, c models.Course) (models.Course, error)
	SaveCourse(ctx context.Context, c models.Course) error
	FindStudent(ctx context.Context, matricNo string) (models.Student, error)
	CreateStudent(ctx context.Context, s models.Student) (models.Student, error)
	SaveStudent(ctx context.Context, s models.Student) error
	DeleteStudent(ctx context.Context, id primitive.ObjectID) error
	StudentsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Student, error)
	FindAttendanceEvent(ctx context.Context, courseID primitive.ObjectID, start, end time.Time) (models.AttendanceEvent, error)
	CreateAttendanceEvent(ctx context.Context, ev models.AttendanceEvent) (models.AttendanceEvent, error)
	SaveAttendanceEvent(ctx context.Context, ev models.AttendanceEvent) error
	AttendanceForCourse(ctx context.Context, courseID primitive.ObjectID) ([]models.AttendanceEvent, error)
}

var (
	_ store = (*ledger.Mongo)(nil)
	_ store = (*ledger.Memory)(nil)
)

func implementations(t *testing.T) map[string]func(t *testing.T) store {
	return map[string]func(t *testing.T) store{
		"memory": func(t *testing.T) store { return ledger.NewMemory() },
		"mongo": func(t *testing.T) store {
			db := testutil.SetupTestDB(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()
			if err := indexes.EnsureAll(ctx, db); err != nil {
				t.Fatalf("EnsureAll failed: %v", err)
			}
			return ledger.NewMongo(db)
		},
	}
}

func TestLedger_CourseLifecycle(t *testing.T) {
	for name, open := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			l := open(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			if _, err := l.FindCourse(ctx, "CS101"); !errors.Is(err, ledger.ErrNotFound) {
				t.Fatalf("FindCourse on empty ledger: got %v, want ErrNotFound", err)
			}

			c, err := l.CreateCourse(ctx, models.Course{Code: "cs 101", Name: "Intro"})
			if err != nil {
				t.Fatalf("CreateCourse failed: %v", err)
			}
			if c.Code != "CS101" {
				t.Errorf("Code = %q, want CS101", c.Code)
			}
			if c.Students == nil || c.Attendance == nil {
				t.Error("expected empty, non-nil reference sets")
			}

			if _, err := l.CreateCourse(ctx, models.Course{Code: "CS101"}); !errors.Is(err, ledger.ErrDuplicate) {
				t.Errorf("second CreateCourse: got %v, want ErrDuplicate", err)
			}

			sid := primitive.NewObjectID()
			c.Students = models.WithID(c.Students, sid)
			if err := l.SaveCourse(ctx, c); err != nil {
				t.Fatalf("SaveCourse failed: %v", err)
			}
			got, err := l.FindCourse(ctx, "CS101")
			if err != nil {
				t.Fatalf("FindCourse failed: %v", err)
			}
			if !got.HasStudent(sid) {
				t.Error("expected saved student reference")
			}

			if err := l.SaveCourse(ctx, models.Course{ID: primitive.NewObjectID(), Code: "GONE"}); !errors.Is(err, ledger.ErrNotFound) {
				t.Errorf("SaveCourse on missing course: got %v, want ErrNotFound", err)
			}
		})
	}
}

func TestLedger_StudentLifecycle(t *testing.T) {
	for name, open := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			l := open(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			s, err := l.CreateStudent(ctx, models.Student{Name: "Ada Obi", MatricNo: " m100 "})
			if err != nil {
				t.Fatalf("CreateStudent failed: %v", err)
			}
			if s.MatricNo != "M100" {
				t.Errorf("MatricNo = %q, want M100", s.MatricNo)
			}

			if _, err := l.CreateStudent(ctx, models.Student{Name: "Other", MatricNo: "M100"}); !errors.Is(err, ledger.ErrDuplicate) {
				t.Errorf("duplicate CreateStudent: got %v, want ErrDuplicate", err)
			}

			got, err := l.FindStudent(ctx, "m100")
			if err != nil {
				t.Fatalf("FindStudent failed: %v", err)
			}
			if got.ID != s.ID {
				t.Errorf("FindStudent returned %v, want %v", got.ID, s.ID)
			}

			list, err := l.StudentsByIDs(ctx, []primitive.ObjectID{s.ID, primitive.NewObjectID()})
			if err != nil {
				t.Fatalf("StudentsByIDs failed: %v", err)
			}
			if len(list) != 1 {
				t.Errorf("StudentsByIDs returned %d students, want 1", len(list))
			}

			if err := l.DeleteStudent(ctx, s.ID); err != nil {
				t.Fatalf("DeleteStudent failed: %v", err)
			}
			if _, err := l.FindStudent(ctx, "M100"); !errors.Is(err, ledger.ErrNotFound) {
				t.Errorf("FindStudent after delete: got %v, want ErrNotFound", err)
			}
			if err := l.DeleteStudent(ctx, s.ID); !errors.Is(err, ledger.ErrNotFound) {
				t.Errorf("second DeleteStudent: got %v, want ErrNotFound", err)
			}
		})
	}
}

func TestLedger_AttendanceWindow(t *testing.T) {
	for name, open := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			l := open(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			courseID := primitive.NewObjectID()
			day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
			studentID := primitive.NewObjectID()

			ev, err := l.CreateAttendanceEvent(ctx, models.AttendanceEvent{
				CourseID:        courseID,
				Date:            day.Add(9 * time.Hour),
				Day:             day.Format(models.DayLayout),
				StudentsPresent: []primitive.ObjectID{studentID},
			})
			if err != nil {
				t.Fatalf("CreateAttendanceEvent failed: %v", err)
			}

			_, err = l.CreateAttendanceEvent(ctx, models.AttendanceEvent{
				CourseID: courseID,
				Date:     day.Add(10 * time.Hour),
				Day:      day.Format(models.DayLayout),
			})
			if !errors.Is(err, ledger.ErrDuplicate) {
				t.Errorf("same-day CreateAttendanceEvent: got %v, want ErrDuplicate", err)
			}

			tests := []struct {
				name       string
				start, end time.Time
				found      bool
			}{
				{"same day", day, day.AddDate(0, 0, 1), true},
				{"previous day", day.AddDate(0, 0, -1), day, false},
				{"next day", day.AddDate(0, 0, 1), day.AddDate(0, 0, 2), false},
			}
			for _, tt := range tests {
				got, err := l.FindAttendanceEvent(ctx, courseID, tt.start, tt.end)
				if tt.found {
					if err != nil {
						t.Errorf("%s: FindAttendanceEvent failed: %v", tt.name, err)
					} else if got.ID != ev.ID || !got.IsPresent(studentID) {
						t.Errorf("%s: unexpected event %+v", tt.name, got)
					}
					continue
				}
				if !errors.Is(err, ledger.ErrNotFound) {
					t.Errorf("%s: got %v, want ErrNotFound", tt.name, err)
				}
			}

			other := primitive.NewObjectID()
			ev.StudentsPresent = models.WithID(ev.StudentsPresent, other)
			if err := l.SaveAttendanceEvent(ctx, ev); err != nil {
				t.Fatalf("SaveAttendanceEvent failed: %v", err)
			}
			all, err := l.AttendanceForCourse(ctx, courseID)
			if err != nil {
				t.Fatalf("AttendanceForCourse failed: %v", err)
			}
			if len(all) != 1 || len(all[0].StudentsPresent) != 2 {
				t.Errorf("AttendanceForCourse = %+v, want one event with two students", all)
			}
		})
	}
}

func TestLedger_AddLecturerCourse(t *testing.T) {
	for name, open := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			l := open(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			course := models.SelectedCourse{CourseCode: "CS101", CourseName: "Intro"}
			lec, created, err := l.AddLecturerCourse(ctx, "Dr Lee", "Lee@Example.com", course)
			if err != nil {
				t.Fatalf("AddLecturerCourse failed: %v", err)
			}
			if !created {
				t.Error("expected first call to create the lecturer")
			}
			if lec.Email != "lee@example.com" {
				t.Errorf("Email = %q, want lee@example.com", lec.Email)
			}

			lec, created, err = l.AddLecturerCourse(ctx, "Dr Lee", "lee@example.com", course)
			if err != nil {
				t.Fatalf("second AddLecturerCourse failed: %v", err)
			}
			if created {
				t.Error("expected second call to reuse the lecturer")
			}
			if len(lec.SelectedCourses) != 1 {
				t.Errorf("SelectedCourses = %v, want one entry", lec.SelectedCourses)
			}

			if _, err := l.FindLecturer(ctx, "nobody@example.com"); !errors.Is(err, ledger.ErrNotFound) {
				t.Errorf("FindLecturer unknown: got %v, want ErrNotFound", err)
			}
		})
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := ledger.NewMemory()
	ctx := context.Background()

	c, err := m.CreateCourse(ctx, models.Course{Code: "CS101"})
	if err != nil {
		t.Fatalf("CreateCourse failed: %v", err)
	}
	c.Students = append(c.Students, primitive.NewObjectID())

	got, _ := m.FindCourse(ctx, "CS101")
	if len(got.Students) != 0 {
		t.Error("mutating a returned course must not change stored state")
	}
}

func TestMemory_FailNext(t *testing.T) {
	m := ledger.NewMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	c, _ := m.CreateCourse(ctx, models.Course{Code: "CS101"})
	m.FailNext("SaveCourse", boom)

	if err := m.SaveCourse(ctx, c); !errors.Is(err, boom) {
		t.Fatalf("first SaveCourse: got %v, want injected error", err)
	}
	if err := m.SaveCourse(ctx, c); err != nil {
		t.Fatalf("second SaveCourse: got %v, want nil", err)
	}
}
