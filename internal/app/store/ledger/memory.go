package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/rollcall/internal/app/system/normalize"
	"github.com/dalemusser/rollcall/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is an in-process ledger. Records are deep-copied on the way in
// and out so callers never share slices with the stored state.
type Memory struct {
	mu         sync.Mutex
	lecturers  map[string]models.Lecturer // by email
	courses    map[primitive.ObjectID]models.Course
	students   map[primitive.ObjectID]models.Student
	attendance map[primitive.ObjectID]models.AttendanceEvent
	faults     map[string][]error
	now        func() time.Time
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		lecturers:  map[string]models.Lecturer{},
		courses:    map[primitive.ObjectID]models.Course{},
		students:   map[primitive.ObjectID]models.Student{},
		attendance: map[primitive.ObjectID]models.AttendanceEvent{},
		faults:     map[string][]error{},
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// FailNext makes the next call to the named method (e.g. "SaveCourse")
// return err instead of touching state. Calls queue up in order.
func (m *Memory) FailNext(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[method] = append(m.faults[method], err)
}

func (m *Memory) fault(method string) error {
	q := m.faults[method]
	if len(q) == 0 {
		return nil
	}
	m.faults[method] = q[1:]
	return q[0]
}

func cloneIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	if ids == nil {
		return nil
	}
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	return out
}

func cloneLecturer(l models.Lecturer) models.Lecturer {
	if l.SelectedCourses != nil {
		sc := make([]models.SelectedCourse, len(l.SelectedCourses))
		copy(sc, l.SelectedCourses)
		l.SelectedCourses = sc
	}
	return l
}

func cloneCourse(c models.Course) models.Course {
	c.Students = cloneIDs(c.Students)
	c.Attendance = cloneIDs(c.Attendance)
	return c
}

func cloneStudent(s models.Student) models.Student {
	s.Courses = cloneIDs(s.Courses)
	return s
}

func cloneEvent(ev models.AttendanceEvent) models.AttendanceEvent {
	ev.StudentsPresent = cloneIDs(ev.StudentsPresent)
	return ev
}

func (m *Memory) FindLecturer(_ context.Context, email string) (models.Lecturer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("FindLecturer"); err != nil {
		return models.Lecturer{}, err
	}
	l, ok := m.lecturers[normalize.Email(email)]
	if !ok {
		return models.Lecturer{}, ErrNotFound
	}
	return cloneLecturer(l), nil
}

// AddLecturerCourse creates the lecturer if needed and adds course to its
// selected set unless an identical entry is already there.
func (m *Memory) AddLecturerCourse(_ context.Context, name, email string, course models.SelectedCourse) (models.Lecturer, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("AddLecturerCourse"); err != nil {
		return models.Lecturer{}, false, err
	}
	email = normalize.Email(email)
	course.CourseCode = normalize.CourseCode(course.CourseCode)
	course.CourseName = normalize.Name(course.CourseName)

	l, ok := m.lecturers[email]
	if !ok {
		l = models.Lecturer{
			ID:              primitive.NewObjectID(),
			Name:            normalize.Name(name),
			Email:           email,
			SelectedCourses: []models.SelectedCourse{},
			CreatedAt:       m.now(),
		}
	}
	l = cloneLecturer(l)
	dup := false
	for _, sc := range l.SelectedCourses {
		if sc == course {
			dup = true
			break
		}
	}
	if !dup {
		l.SelectedCourses = append(l.SelectedCourses, course)
	}
	m.lecturers[email] = l
	return cloneLecturer(l), !ok, nil
}

// PutLecturer stores l as-is, assigning an ID when it has none.
func (m *Memory) PutLecturer(l models.Lecturer) models.Lecturer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	l.Email = normalize.Email(l.Email)
	if l.SelectedCourses == nil {
		l.SelectedCourses = []models.SelectedCourse{}
	}
	m.lecturers[l.Email] = cloneLecturer(l)
	return cloneLecturer(l)
}

func (m *Memory) FindCourse(_ context.Context, code string) (models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("FindCourse"); err != nil {
		return models.Course{}, err
	}
	code = normalize.CourseCode(code)
	for _, c := range m.courses {
		if c.Code == code {
			return cloneCourse(c), nil
		}
	}
	return models.Course{}, ErrNotFound
}

func (m *Memory) CreateCourse(_ context.Context, c models.Course) (models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("CreateCourse"); err != nil {
		return models.Course{}, err
	}
	c.Code = normalize.CourseCode(c.Code)
	c.Name = normalize.Name(c.Name)
	for _, existing := range m.courses {
		if existing.Code == c.Code {
			return models.Course{}, ErrDuplicate
		}
	}
	c.ID = primitive.NewObjectID()
	if c.Students == nil {
		c.Students = []primitive.ObjectID{}
	}
	if c.Attendance == nil {
		c.Attendance = []primitive.ObjectID{}
	}
	c.CreatedAt = m.now()
	m.courses[c.ID] = cloneCourse(c)
	return cloneCourse(c), nil
}

func (m *Memory) SaveCourse(_ context.Context, c models.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("SaveCourse"); err != nil {
		return err
	}
	if _, ok := m.courses[c.ID]; !ok {
		return ErrNotFound
	}
	m.courses[c.ID] = cloneCourse(c)
	return nil
}

func (m *Memory) FindStudent(_ context.Context, matricNo string) (models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("FindStudent"); err != nil {
		return models.Student{}, err
	}
	matricNo = normalize.MatricNo(matricNo)
	for _, s := range m.students {
		if s.MatricNo == matricNo {
			return cloneStudent(s), nil
		}
	}
	return models.Student{}, ErrNotFound
}

func (m *Memory) CreateStudent(_ context.Context, s models.Student) (models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("CreateStudent"); err != nil {
		return models.Student{}, err
	}
	s.MatricNo = normalize.MatricNo(s.MatricNo)
	for _, existing := range m.students {
		if existing.MatricNo == s.MatricNo {
			return models.Student{}, ErrDuplicate
		}
	}
	s.ID = primitive.NewObjectID()
	s.Name = normalize.Name(s.Name)
	s.NameCI = text.Fold(s.Name)
	if s.Courses == nil {
		s.Courses = []primitive.ObjectID{}
	}
	s.CreatedAt = m.now()
	m.students[s.ID] = cloneStudent(s)
	return cloneStudent(s), nil
}

func (m *Memory) SaveStudent(_ context.Context, s models.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("SaveStudent"); err != nil {
		return err
	}
	if _, ok := m.students[s.ID]; !ok {
		return ErrNotFound
	}
	m.students[s.ID] = cloneStudent(s)
	return nil
}

func (m *Memory) DeleteStudent(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("DeleteStudent"); err != nil {
		return err
	}
	if _, ok := m.students[id]; !ok {
		return ErrNotFound
	}
	delete(m.students, id)
	return nil
}

// StudentsByIDs returns the students whose IDs are in ids, sorted by name.
func (m *Memory) StudentsByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("StudentsByIDs"); err != nil {
		return nil, err
	}
	out := []models.Student{}
	for _, id := range ids {
		if s, ok := m.students[id]; ok {
			out = append(out, cloneStudent(s))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NameCI < out[j].NameCI })
	return out, nil
}

// StudentCount reports how many student records exist.
func (m *Memory) StudentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.students)
}

func (m *Memory) FindAttendanceEvent(_ context.Context, courseID primitive.ObjectID, start, end time.Time) (models.AttendanceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("FindAttendanceEvent"); err != nil {
		return models.AttendanceEvent{}, err
	}
	for _, ev := range m.attendance {
		if ev.CourseID == courseID && !ev.Date.Before(start) && ev.Date.Before(end) {
			return cloneEvent(ev), nil
		}
	}
	return models.AttendanceEvent{}, ErrNotFound
}

func (m *Memory) CreateAttendanceEvent(_ context.Context, ev models.AttendanceEvent) (models.AttendanceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("CreateAttendanceEvent"); err != nil {
		return models.AttendanceEvent{}, err
	}
	for _, existing := range m.attendance {
		if existing.CourseID == ev.CourseID && existing.Day == ev.Day {
			return models.AttendanceEvent{}, ErrDuplicate
		}
	}
	ev.ID = primitive.NewObjectID()
	ev.Date = ev.Date.Truncate(time.Millisecond)
	if ev.StudentsPresent == nil {
		ev.StudentsPresent = []primitive.ObjectID{}
	}
	m.attendance[ev.ID] = cloneEvent(ev)
	return cloneEvent(ev), nil
}

func (m *Memory) SaveAttendanceEvent(_ context.Context, ev models.AttendanceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("SaveAttendanceEvent"); err != nil {
		return err
	}
	if _, ok := m.attendance[ev.ID]; !ok {
		return ErrNotFound
	}
	m.attendance[ev.ID] = cloneEvent(ev)
	return nil
}

// AttendanceForCourse returns the course's events, most recent first.
func (m *Memory) AttendanceForCourse(_ context.Context, courseID primitive.ObjectID) ([]models.AttendanceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("AttendanceForCourse"); err != nil {
		return nil, err
	}
	out := []models.AttendanceEvent{}
	for _, ev := range m.attendance {
		if ev.CourseID == courseID {
			out = append(out, cloneEvent(ev))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}
