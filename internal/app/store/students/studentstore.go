// internal/app/store/students/studentstore.go
package studentstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/rollcall/internal/app/system/normalize"
	"github.com/dalemusser/rollcall/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateMatric = errors.New("a student with this matric number already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("students")}
}

// GetByMatric returns mongo.ErrNoDocuments if no student has the number.
func (s *Store) GetByMatric(ctx context.Context, matricNo string) (models.Student, error) {
	var st models.Student
	if err := s.c.FindOne(ctx, bson.M{"matric_no": normalize.MatricNo(matricNo)}).Decode(&st); err != nil {
		return models.Student{}, err
	}
	return st, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Student, error) {
	var st models.Student
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&st); err != nil {
		return models.Student{}, err
	}
	return st, nil
}

// GetMany loads the students with the given IDs, sorted by name.
// Unknown IDs are skipped.
func (s *Store) GetMany(ctx context.Context, ids []primitive.ObjectID) ([]models.Student, error) {
	out := []models.Student{}
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts st with a fresh ID.
func (s *Store) Create(ctx context.Context, st models.Student) (models.Student, error) {
	st.ID = primitive.NewObjectID()
	st.Name = normalize.Name(st.Name)
	st.NameCI = text.Fold(st.Name)
	st.MatricNo = normalize.MatricNo(st.MatricNo)
	if st.Courses == nil {
		st.Courses = []primitive.ObjectID{}
	}
	st.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := s.c.InsertOne(ctx, st); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Student{}, ErrDuplicateMatric
		}
		return models.Student{}, err
	}
	return st, nil
}

// Replace writes the whole document. Returns mongo.ErrNoDocuments when the
// student no longer exists.
func (s *Store) Replace(ctx context.Context, st models.Student) error {
	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": st.ID}, st)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes a student by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
