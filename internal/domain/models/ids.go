// internal/domain/models/ids.go
package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// ContainsID reports whether id is in ids.
func ContainsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// WithoutID returns a copy of ids with every occurrence of id removed.
// The result is never nil so a record that started with an empty set
// round-trips to the same shape.
func WithoutID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// WithID returns a copy of ids with id appended, unless already present.
func WithID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids)+1)
	out = append(out, ids...)
	if ContainsID(ids, id) {
		return out
	}
	return append(out, id)
}
