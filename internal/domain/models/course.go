// internal/domain/models/course.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Course is identified by its unique course code.
//
// Students mirrors Student.Courses: if a student is listed here, the student
// lists this course, and vice versa. Attendance holds one AttendanceEvent per
// calendar day the course was taken.
type Course struct {
	ID         primitive.ObjectID   `bson:"_id" json:"id"`
	Code       string               `bson:"course_code" json:"courseCode"`
	Name       string               `bson:"course_name" json:"courseName"`
	LecturerID primitive.ObjectID   `bson:"lecturer_id" json:"lecturerId"`
	Students   []primitive.ObjectID `bson:"students" json:"students"`
	Attendance []primitive.ObjectID `bson:"attendance" json:"attendance"`
	CreatedAt  time.Time            `bson:"created_at" json:"createdAt"`
}

// HasStudent reports whether id is in the course's student set.
func (c Course) HasStudent(id primitive.ObjectID) bool {
	return ContainsID(c.Students, id)
}
