// internal/app/store/courses/coursestore.go
package coursestore

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
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateCode = errors.New("a course with this code already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("courses")}
}

// GetByCode returns mongo.ErrNoDocuments if no course has the code.
func (s *Store) GetByCode(ctx context.Context, code string) (models.Course, error) {
	var c models.Course
	if err := s.c.FindOne(ctx, bson.M{"course_code": normalize.CourseCode(code)}).Decode(&c); err != nil {
		return models.Course{}, err
	}
	return c, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Course, error) {
	var c models.Course
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return models.Course{}, err
	}
	return c, nil
}

// Create inserts c with a fresh ID. The reference sets start empty (never
// nil) so they encode as arrays.
func (s *Store) Create(ctx context.Context, c models.Course) (models.Course, error) {
	c.ID = primitive.NewObjectID()
	c.Code = normalize.CourseCode(c.Code)
	c.Name = normalize.Name(c.Name)
	if c.Students == nil {
		c.Students = []primitive.ObjectID{}
	}
	if c.Attendance == nil {
		c.Attendance = []primitive.ObjectID{}
	}
	c.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Course{}, ErrDuplicateCode
		}
		return models.Course{}, err
	}
	return c, nil
}

// Replace writes the whole document. Returns mongo.ErrNoDocuments when the
// course no longer exists.
func (s *Store) Replace(ctx context.Context, c models.Course) error {
	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
