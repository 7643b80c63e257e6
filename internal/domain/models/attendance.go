// internal/domain/models/attendance.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DayLayout is the format of AttendanceEvent.Day.
const DayLayout = "2006-01-02"

// AttendanceEvent records who was present for a course on one calendar day.
// There is at most one event per (CourseID, Day); the attendances collection
// carries a unique index on that pair.
type AttendanceEvent struct {
	ID              primitive.ObjectID   `bson:"_id" json:"id"`
	CourseID        primitive.ObjectID   `bson:"course_id" json:"courseId"`
	Date            time.Time            `bson:"date" json:"date"`
	Day             string               `bson:"day" json:"day"`
	StudentsPresent []primitive.ObjectID `bson:"students_present" json:"studentsPresent"`
}

// IsPresent reports whether the student was marked present.
func (a AttendanceEvent) IsPresent(studentID primitive.ObjectID) bool {
	return ContainsID(a.StudentsPresent, studentID)
}
