// internal/app/store/lecturers/lecturerstore.go
package lecturerstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/rollcall/internal/app/system/normalize"
	"github.com/dalemusser/rollcall/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("lecturers")}
}

// GetByEmail looks up a lecturer by case-insensitive email.
// Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.Lecturer, error) {
	var l models.Lecturer
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&l); err != nil {
		return models.Lecturer{}, err
	}
	return l, nil
}

// GetByID loads a lecturer by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Lecturer, error) {
	var l models.Lecturer
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&l); err != nil {
		return models.Lecturer{}, err
	}
	return l, nil
}

// AddCourse registers a lecturer (if new) and adds course to their selected
// courses unless an identical entry is already there. created reports
// whether a new lecturer document was inserted.
func (s *Store) AddCourse(ctx context.Context, name, email string, course models.SelectedCourse) (l models.Lecturer, created bool, err error) {
	email = normalize.Email(email)
	course.CourseCode = normalize.CourseCode(course.CourseCode)
	course.CourseName = normalize.Name(course.CourseName)

	existing, err := s.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.addToSet(ctx, existing.ID, course)
	case !errors.Is(err, mongo.ErrNoDocuments):
		return models.Lecturer{}, false, err
	}

	l = models.Lecturer{
		ID:              primitive.NewObjectID(),
		Name:            normalize.Name(name),
		Email:           email,
		SelectedCourses: []models.SelectedCourse{course},
		CreatedAt:       time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, l); err != nil {
		if !wafflemongo.IsDup(err) {
			return models.Lecturer{}, false, err
		}
		// Lost an insert race; the other request created the lecturer.
		existing, err := s.GetByEmail(ctx, email)
		if err != nil {
			return models.Lecturer{}, false, err
		}
		return s.addToSet(ctx, existing.ID, course)
	}
	return l, true, nil
}

func (s *Store) addToSet(ctx context.Context, id primitive.ObjectID, course models.SelectedCourse) (models.Lecturer, bool, error) {
	var l models.Lecturer
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{"selected_courses": course}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&l)
	if err != nil {
		return models.Lecturer{}, false, err
	}
	return l, false, nil
}
