// internal/domain/models/student.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Student is identified by a unique matriculation number. Created on the
// first enrollment.
type Student struct {
	ID        primitive.ObjectID   `bson:"_id" json:"id"`
	Name      string               `bson:"name" json:"name"`
	NameCI    string               `bson:"name_ci" json:"-"`
	MatricNo  string               `bson:"matric_no" json:"matricNo"`
	Courses   []primitive.ObjectID `bson:"courses" json:"courses"`
	CreatedAt time.Time            `bson:"created_at" json:"createdAt"`
}

// HasCourse reports whether id is in the student's course set.
func (s Student) HasCourse(id primitive.ObjectID) bool {
	return ContainsID(s.Courses, id)
}
