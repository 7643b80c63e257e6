package models

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestWithoutID_RestoresEmptySet(t *testing.T) {
	a := primitive.NewObjectID()
	start := []primitive.ObjectID{}

	added := WithID(start, a)
	if len(added) != 1 || added[0] != a {
		t.Fatalf("WithID: got %v", added)
	}

	removed := WithoutID(added, a)
	if removed == nil {
		t.Fatal("expected non-nil empty slice")
	}
	if len(removed) != 0 {
		t.Fatalf("expected empty slice, got %v", removed)
	}
}

func TestWithID_NoDuplicates(t *testing.T) {
	a := primitive.NewObjectID()
	ids := WithID(WithID(nil, a), a)
	if len(ids) != 1 {
		t.Errorf("expected 1 id, got %d", len(ids))
	}
}

func TestWithoutID_KeepsOrder(t *testing.T) {
	a, b, c := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	got := WithoutID([]primitive.ObjectID{a, b, c}, b)
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Errorf("got %v, want [%v %v]", got, a, c)
	}
}
