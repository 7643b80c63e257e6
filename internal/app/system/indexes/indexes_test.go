package indexes_test

import (
	"testing"

	"github.com/dalemusser/rollcall/internal/app/system/indexes"
	"github.com/dalemusser/rollcall/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestEnsureAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// EnsureAll should succeed on a clean database
	err := indexes.EnsureAll(ctx, db)
	if err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func indexNames(t *testing.T, db *mongo.Database, coll string) map[string]bool {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cur, err := db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	tests := []struct {
		coll string
		want []string
	}{
		{"lecturers", []string{"uniq_lecturers_email"}},
		{"courses", []string{"uniq_courses_code", "idx_courses_lecturer_code"}},
		{"students", []string{"uniq_students_matric", "idx_students_nameci__id"}},
		{"attendances", []string{"uniq_attendances_course_day", "idx_attendances_course_date"}},
		{"users", []string{"uniq_users_email"}},
		{"audit_events", []string{"idx_audit_timestamp", "idx_audit_category_timestamp", "idx_audit_user_timestamp", "idx_audit_course_timestamp"}},
	}

	for _, tt := range tests {
		t.Run(tt.coll, func(t *testing.T) {
			names := indexNames(t, db, tt.coll)
			for _, name := range tt.want {
				if !names[name] {
					t.Errorf("expected index %q to exist on %s collection", name, tt.coll)
				}
			}
		})
	}
}

func TestEnsureAll_UniqueAttendanceDay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	courseID := primitive.NewObjectID()
	coll := db.Collection("attendances")
	if _, err := coll.InsertOne(ctx, bson.M{"course_id": courseID, "day": "2024-03-04"}); err != nil {
		t.Fatalf("Insert attendance failed: %v", err)
	}
	if _, err := coll.InsertOne(ctx, bson.M{"course_id": courseID, "day": "2024-03-04"}); err == nil {
		t.Error("expected duplicate key error for unique index on attendances(course_id, day)")
	}
	// a different day for the same course is fine
	if _, err := coll.InsertOne(ctx, bson.M{"course_id": courseID, "day": "2024-03-05"}); err != nil {
		t.Errorf("Insert next-day attendance failed: %v", err)
	}
}

func TestEnsureAll_UniqueMatricNo(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	coll := db.Collection("students")
	if _, err := coll.InsertOne(ctx, bson.M{"matric_no": "M100", "name": "Ada"}); err != nil {
		t.Fatalf("Insert student failed: %v", err)
	}
	if _, err := coll.InsertOne(ctx, bson.M{"matric_no": "M100", "name": "Other"}); err == nil {
		t.Error("expected duplicate key error for unique index on students.matric_no")
	}
}
