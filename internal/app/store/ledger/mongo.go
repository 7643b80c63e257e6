package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	attendancestore "github.com/dalemusser/rollcall/internal/app/store/attendance"
	coursestore "github.com/dalemusser/rollcall/internal/app/store/courses"
	lecturerstore "github.com/dalemusser/rollcall/internal/app/store/lecturers"
	studentstore "github.com/dalemusser/rollcall/internal/app/store/students"
	"github.com/dalemusser/rollcall/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Mongo is the MongoDB-backed ledger.
type Mongo struct {
	lecturers  *lecturerstore.Store
	courses    *coursestore.Store
	students   *studentstore.Store
	attendance *attendancestore.Store
}

// NewMongo builds a ledger over db's lecturers, courses, students and
// attendances collections.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		lecturers:  lecturerstore.New(db),
		courses:    coursestore.New(db),
		students:   studentstore.New(db),
		attendance: attendancestore.New(db),
	}
}

// translate maps store-level errors onto the ledger sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case errors.Is(err, coursestore.ErrDuplicateCode),
		errors.Is(err, studentstore.ErrDuplicateMatric),
		errors.Is(err, attendancestore.ErrDuplicateDay):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func (m *Mongo) FindLecturer(ctx context.Context, email string) (models.Lecturer, error) {
	l, err := m.lecturers.GetByEmail(ctx, email)
	return l, translate(err)
}

func (m *Mongo) AddLecturerCourse(ctx context.Context, name, email string, course models.SelectedCourse) (models.Lecturer, bool, error) {
	l, created, err := m.lecturers.AddCourse(ctx, name, email, course)
	return l, created, translate(err)
}

func (m *Mongo) FindCourse(ctx context.Context, code string) (models.Course, error) {
	c, err := m.courses.GetByCode(ctx, code)
	return c, translate(err)
}

func (m *Mongo) CreateCourse(ctx context.Context, c models.Course) (models.Course, error) {
	c, err := m.courses.Create(ctx, c)
	return c, translate(err)
}

func (m *Mongo) SaveCourse(ctx context.Context, c models.Course) error {
	return translate(m.courses.Replace(ctx, c))
}

func (m *Mongo) FindStudent(ctx context.Context, matricNo string) (models.Student, error) {
	s, err := m.students.GetByMatric(ctx, matricNo)
	return s, translate(err)
}

func (m *Mongo) CreateStudent(ctx context.Context, s models.Student) (models.Student, error) {
	s, err := m.students.Create(ctx, s)
	return s, translate(err)
}

func (m *Mongo) SaveStudent(ctx context.Context, s models.Student) error {
	return translate(m.students.Replace(ctx, s))
}

func (m *Mongo) DeleteStudent(ctx context.Context, id primitive.ObjectID) error {
	n, err := m.students.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) StudentsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Student, error) {
	return m.students.GetMany(ctx, ids)
}

func (m *Mongo) FindAttendanceEvent(ctx context.Context, courseID primitive.ObjectID, start, end time.Time) (models.AttendanceEvent, error) {
	ev, err := m.attendance.FindInRange(ctx, courseID, start, end)
	return ev, translate(err)
}

func (m *Mongo) CreateAttendanceEvent(ctx context.Context, ev models.AttendanceEvent) (models.AttendanceEvent, error) {
	ev, err := m.attendance.Create(ctx, ev)
	return ev, translate(err)
}

func (m *Mongo) SaveAttendanceEvent(ctx context.Context, ev models.AttendanceEvent) error {
	return translate(m.attendance.Replace(ctx, ev))
}

func (m *Mongo) AttendanceForCourse(ctx context.Context, courseID primitive.ObjectID) ([]models.AttendanceEvent, error) {
	return m.attendance.ListByCourse(ctx, courseID)
}
