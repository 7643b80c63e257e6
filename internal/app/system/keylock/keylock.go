// Package keylock serializes work on named resources (a student, a course,
// a course-day) within one process. Locks are created on first use and
// released when the last holder or waiter leaves.
package keylock

import (
	"context"
	"sync"
)

// Locker hands out per-key mutual exclusion. The zero value is ready to use.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{} // 1-buffered; a token in the channel means held
	refs int
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{}
}

// Lock blocks until key is free or ctx is done. On success it returns the
// function that releases the lock; calling it more than once is a no-op.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	e := l.acquireRef(key)

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.releaseRef(key)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.releaseRef(key)
		})
	}, nil
}

// LockAll takes the keys in order and returns one function releasing all
// of them in reverse. If any acquisition fails the ones already held are
// released.
func (l *Locker) LockAll(ctx context.Context, keys ...string) (func(), error) {
	unlocks := make([]func(), 0, len(keys))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, k := range keys {
		u, err := l.Lock(ctx, k)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, u)
	}
	return release, nil
}

// Len reports how many keys are currently held or waited on.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *Locker) acquireRef(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*entry)
	}
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) releaseRef(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.locks[key]
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// Student is the key held for the whole of any workflow on matricNo.
func Student(matricNo string) string { return "student:" + matricNo }

// Attendance is taken after Student for a whole attendance marking.
func Attendance(courseCode, matricNo string) string {
	return "attendance:" + courseCode + ":" + matricNo
}

// Course guards read-modify-write of a course record.
func Course(courseCode string) string { return "course:" + courseCode }

// AttendanceDay guards read-modify-write of one course-day event.
func AttendanceDay(courseID, day string) string {
	return "attendance-day:" + courseID + ":" + day
}
