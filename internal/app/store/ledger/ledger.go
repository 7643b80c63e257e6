// Package ledger is the persistence facade the device workflows run
// against. Mongo composes the per-collection stores; Memory is a
// process-local implementation with the same semantics.
//
// Both implementations hand out records by value. Callers mutate their copy
// and persist it with the matching Save method.
package ledger

import "errors"

var (
	// ErrNotFound is returned by Find* methods when no record matches.
	ErrNotFound = errors.New("ledger: record not found")
	// ErrDuplicate is returned by Create* methods when a unique key
	// (course code, matric number, course+day, lecturer email) is taken.
	ErrDuplicate = errors.New("ledger: duplicate record")
)
