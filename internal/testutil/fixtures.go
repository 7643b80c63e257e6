package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/rollcall/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateLecturer inserts a lecturer with no selected courses.
func (f *Fixtures) CreateLecturer(ctx context.Context, name, email string) models.Lecturer {
	f.t.Helper()

	l := models.Lecturer{
		ID:              primitive.NewObjectID(),
		Name:            name,
		Email:           email,
		SelectedCourses: []models.SelectedCourse{},
		CreatedAt:       time.Now().UTC(),
	}
	if _, err := f.db.Collection("lecturers").InsertOne(ctx, l); err != nil {
		f.t.Fatalf("failed to create test lecturer: %v", err)
	}
	return l
}

// CreateCourse inserts an empty course owned by lecturerID.
func (f *Fixtures) CreateCourse(ctx context.Context, code, name string, lecturerID primitive.ObjectID) models.Course {
	f.t.Helper()

	c := models.Course{
		ID:         primitive.NewObjectID(),
		Code:       code,
		Name:       name,
		LecturerID: lecturerID,
		Students:   []primitive.ObjectID{},
		Attendance: []primitive.ObjectID{},
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := f.db.Collection("courses").InsertOne(ctx, c); err != nil {
		f.t.Fatalf("failed to create test course: %v", err)
	}
	return c
}

// CreateStudent inserts a student enrolled in nothing.
func (f *Fixtures) CreateStudent(ctx context.Context, name, matricNo string) models.Student {
	f.t.Helper()

	s := models.Student{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		MatricNo:  matricNo,
		Courses:   []primitive.ObjectID{},
		CreatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("students").InsertOne(ctx, s); err != nil {
		f.t.Fatalf("failed to create test student: %v", err)
	}
	return s
}

// Enroll links a student and a course on both sides.
func (f *Fixtures) Enroll(ctx context.Context, s models.Student, c models.Course) {
	f.t.Helper()

	if _, err := f.db.Collection("students").UpdateByID(ctx, s.ID,
		bson.M{"$addToSet": bson.M{"courses": c.ID}}); err != nil {
		f.t.Fatalf("failed to link student to course: %v", err)
	}
	if _, err := f.db.Collection("courses").UpdateByID(ctx, c.ID,
		bson.M{"$addToSet": bson.M{"students": s.ID}}); err != nil {
		f.t.Fatalf("failed to link course to student: %v", err)
	}
}
