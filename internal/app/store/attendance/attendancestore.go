// internal/app/store/attendance/attendancestore.go
package attendancestore

import (
	"context"
	"errors"
	"time"

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

// ErrDuplicateDay is returned when an event for (course, day) already exists.
var ErrDuplicateDay = errors.New("attendance for this course and day already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("attendances")}
}

// FindInRange returns the course's event whose date falls in [start, end).
// Returns mongo.ErrNoDocuments if there is none.
func (s *Store) FindInRange(ctx context.Context, courseID primitive.ObjectID, start, end time.Time) (models.AttendanceEvent, error) {
	var ev models.AttendanceEvent
	err := s.c.FindOne(ctx, bson.M{
		"course_id": courseID,
		"date":      bson.M{"$gte": start, "$lt": end},
	}).Decode(&ev)
	if err != nil {
		return models.AttendanceEvent{}, err
	}
	return ev, nil
}

// Create inserts ev with a fresh ID.
func (s *Store) Create(ctx context.Context, ev models.AttendanceEvent) (models.AttendanceEvent, error) {
	ev.ID = primitive.NewObjectID()
	ev.Date = ev.Date.Truncate(time.Millisecond)
	if ev.StudentsPresent == nil {
		ev.StudentsPresent = []primitive.ObjectID{}
	}
	if _, err := s.c.InsertOne(ctx, ev); err != nil {
		if wafflemongo.IsDup(err) {
			return models.AttendanceEvent{}, ErrDuplicateDay
		}
		return models.AttendanceEvent{}, err
	}
	return ev, nil
}

// Replace writes the whole document. Returns mongo.ErrNoDocuments when the
// event no longer exists.
func (s *Store) Replace(ctx context.Context, ev models.AttendanceEvent) error {
	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": ev.ID}, ev)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListByCourse returns every event for a course, most recent first.
func (s *Store) ListByCourse(ctx context.Context, courseID primitive.ObjectID) ([]models.AttendanceEvent, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"course_id": courseID},
		options.Find().SetSort(bson.D{{Key: "date", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.AttendanceEvent{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
