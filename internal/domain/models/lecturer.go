// internal/domain/models/lecturer.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SelectedCourse is a course a lecturer has picked to teach. It is a plain
// (code, name) pair; the authoritative Course document is created lazily on
// the first enrollment.
type SelectedCourse struct {
	CourseCode string `bson:"course_code" json:"courseCode"`
	CourseName string `bson:"course_name" json:"courseName"`
}

// Lecturer owns courses. Email is unique.
type Lecturer struct {
	ID              primitive.ObjectID `bson:"_id" json:"id"`
	Name            string             `bson:"name" json:"name"`
	Email           string             `bson:"email" json:"email"`
	SelectedCourses []SelectedCourse   `bson:"selected_courses" json:"selectedCourses"`
	CreatedAt       time.Time          `bson:"created_at" json:"createdAt"`
}
