package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/rollcall/internal/app/store/audit"
	"github.com/dalemusser/rollcall/internal/app/store/ledger"
	"github.com/dalemusser/rollcall/internal/app/system/auditlog"
	"github.com/dalemusser/rollcall/internal/app/system/correlator"
	"github.com/dalemusser/rollcall/internal/app/system/keylock"
	"github.com/dalemusser/rollcall/internal/app/system/normalize"
	"github.com/dalemusser/rollcall/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// EnrollRequest names the student to enroll and the course to enroll them in.
type EnrollRequest struct {
	LecturerEmail string
	CourseCode    string
	CourseName    string
	StudentName   string
	MatricNo      string
	// ActorID is the signed-in user's hex ID, recorded in the audit trail.
	ActorID string
}

type enrollPayload struct {
	CorrelationKey string `json:"correlationKey"`
	Name           string `json:"name"`
	MatricNo       string `json:"matricNo"`
	CourseCode     string `json:"courseCode"`
}

// Enroll registers a student on a course and on the device. The ledger is
// written first; if the device does not confirm, the write is undone and
// the ledger ends as if Enroll had never run.
func (c *Coordinator) Enroll(ctx context.Context, req EnrollRequest) (res Result, err error) {
	start := time.Now()
	defer func() { observe("enroll", start, err) }()

	req.LecturerEmail = normalize.Email(req.LecturerEmail)
	req.CourseCode = normalize.CourseCode(req.CourseCode)
	req.CourseName = normalize.Name(req.CourseName)
	req.StudentName = normalize.Name(req.StudentName)
	req.MatricNo = normalize.MatricNo(req.MatricNo)
	if req.CourseCode == "" || req.MatricNo == "" || req.StudentName == "" {
		return fail(ErrInvalid, "Course code, student name and matric number are required", nil)
	}

	unlock, err := c.lock(ctx, keylock.Student(req.MatricNo))
	if err != nil {
		return Result{Message: Reason(err)}, err
	}
	defer unlock()

	course, err := c.resolveCourse(ctx, req)
	if err != nil {
		return Result{Message: Reason(err)}, err
	}

	student, created, err := c.resolveStudent(ctx, req)
	if err != nil {
		return Result{Message: Reason(err)}, err
	}
	if student.HasCourse(course.ID) {
		return Result{Success: true, Message: "Student already enrolled"}, nil
	}
	before := student

	// Tentative write. The student side is covered by the student lock;
	// the course document is shared with other students' workflows.
	student.Courses = models.WithID(student.Courses, course.ID)
	if err := c.ledger.SaveStudent(ctx, student); err != nil {
		return c.abortEnroll(ctx, req, before, created, course.Code, err)
	}
	addedToCourse, err := c.addCourseStudent(ctx, course.Code, student.ID)
	if err != nil {
		return c.abortEnroll(ctx, req, before, created, course.Code, err)
	}

	key, outcome, sendErr := c.exchange(ctx, correlator.KindEnroll, c.enrollTimeout(), func(key string) any {
		return enrollPayload{
			CorrelationKey: key,
			Name:           student.Name,
			MatricNo:       student.MatricNo,
			CourseCode:     course.Code,
		}
	})
	if sendErr == nil && outcome.Status == correlator.StatusSuccess {
		c.log.Info("student enrolled",
			zap.String("course_code", course.Code),
			zap.String("matric_no", student.MatricNo),
			zap.String("correlation_key", key))
		c.record(ctx, auditlog.DeviceEvent{
			EventType:      audit.EventEnrollSucceeded,
			ActorID:        req.ActorID,
			CourseCode:     course.Code,
			MatricNo:       student.MatricNo,
			CorrelationKey: key,
			Success:        true,
		})
		return Result{Success: true, Message: "Enrollment Success", CorrelationKey: key}, nil
	}

	res, err = exchangeFailure(key, outcome, sendErr, "Enrollment failed")
	c.log.Warn("enrollment not confirmed by device",
		zap.String("course_code", course.Code),
		zap.String("matric_no", student.MatricNo),
		zap.String("correlation_key", key),
		zap.Error(err))
	c.record(ctx, auditlog.DeviceEvent{
		EventType:      audit.EventEnrollFailed,
		ActorID:        req.ActorID,
		CourseCode:     course.Code,
		MatricNo:       student.MatricNo,
		CorrelationKey: key,
		Reason:         Reason(err),
	})
	if cerr := c.undoEnroll(ctx, req, key, before, created, course.Code, addedToCourse); cerr != nil {
		res, err = fail(ErrStorage, "Database error", fmt.Errorf("%w: %w", ErrCompensationFailed, cerr))
		res.CorrelationKey = key
	}
	return res, err
}

// abortEnroll undoes a tentative write that failed before any command was
// sent. The course reference was not added.
func (c *Coordinator) abortEnroll(ctx context.Context, req EnrollRequest, before models.Student, created bool, code string, cause error) (Result, error) {
	if cerr := c.undoEnroll(ctx, req, "", before, created, code, false); cerr != nil {
		return fail(ErrStorage, "Database error", fmt.Errorf("%w: %w", ErrCompensationFailed, multierr.Append(cause, cerr)))
	}
	return writeFailure(ctx, cause)
}

// resolveCourse finds the course or creates it for the lecturer. A course
// created here is kept when the enrollment is rolled back; only the student
// references are undone.
func (c *Coordinator) resolveCourse(ctx context.Context, req EnrollRequest) (models.Course, error) {
	course, err := c.ledger.FindCourse(ctx, req.CourseCode)
	if err == nil {
		return course, nil
	}
	if !isNotFound(err) {
		_, ferr := storageFailure(err)
		return models.Course{}, ferr
	}

	unlock, err := c.lock(ctx, keylock.Course(req.CourseCode))
	if err != nil {
		return models.Course{}, err
	}
	defer unlock()

	// Another workflow may have created it while we waited.
	if course, err := c.ledger.FindCourse(ctx, req.CourseCode); err == nil {
		return course, nil
	} else if !isNotFound(err) {
		_, ferr := storageFailure(err)
		return models.Course{}, ferr
	}

	if req.LecturerEmail == "" {
		_, ferr := fail(ErrInvalid, "Lecturer email is required to create a course", nil)
		return models.Course{}, ferr
	}
	lecturer, err := c.ledger.FindLecturer(ctx, req.LecturerEmail)
	if isNotFound(err) {
		_, ferr := fail(ErrNotFound, "Lecturer not found", err)
		return models.Course{}, ferr
	}
	if err != nil {
		_, ferr := storageFailure(err)
		return models.Course{}, ferr
	}

	name := req.CourseName
	if name == "" {
		name = selectedCourseName(lecturer, req.CourseCode)
	}
	course, err = c.ledger.CreateCourse(ctx, models.Course{
		Code:       req.CourseCode,
		Name:       name,
		LecturerID: lecturer.ID,
	})
	if errors.Is(err, ledger.ErrDuplicate) {
		// Lost a race with another process.
		course, err = c.ledger.FindCourse(ctx, req.CourseCode)
	}
	if err != nil {
		_, ferr := storageFailure(err)
		return models.Course{}, ferr
	}
	c.log.Info("course created",
		zap.String("course_code", course.Code),
		zap.String("lecturer_email", lecturer.Email))
	return course, nil
}

func selectedCourseName(l models.Lecturer, code string) string {
	for _, sc := range l.SelectedCourses {
		if strings.EqualFold(normalize.CourseCode(sc.CourseCode), code) {
			return sc.CourseName
		}
	}
	return ""
}

// resolveStudent finds the student or creates one. created reports whether
// this call made the record.
func (c *Coordinator) resolveStudent(ctx context.Context, req EnrollRequest) (models.Student, bool, error) {
	student, err := c.ledger.FindStudent(ctx, req.MatricNo)
	if err == nil {
		return student, false, nil
	}
	if !isNotFound(err) {
		_, ferr := storageFailure(err)
		return models.Student{}, false, ferr
	}
	student, err = c.ledger.CreateStudent(ctx, models.Student{
		Name:     req.StudentName,
		MatricNo: req.MatricNo,
	})
	if errors.Is(err, ledger.ErrDuplicate) {
		student, err = c.ledger.FindStudent(ctx, req.MatricNo)
		if err == nil {
			return student, false, nil
		}
	}
	if err != nil {
		_, ferr := storageFailure(err)
		return models.Student{}, false, ferr
	}
	return student, true, nil
}

// addCourseStudent adds studentID to the course's student set. added is
// false when the reference was already there.
func (c *Coordinator) addCourseStudent(ctx context.Context, code string, studentID primitive.ObjectID) (added bool, err error) {
	unlock, err := c.locks.Lock(ctx, keylock.Course(code))
	if err != nil {
		return false, err
	}
	defer unlock()

	course, err := c.ledger.FindCourse(ctx, code)
	if err != nil {
		return false, err
	}
	if course.HasStudent(studentID) {
		return false, nil
	}
	course.Students = models.WithID(course.Students, studentID)
	if err := c.ledger.SaveCourse(ctx, course); err != nil {
		return false, err
	}
	return true, nil
}

// undoEnroll reverses the tentative write. It runs to completion even if
// ctx has been cancelled and reports every step that failed.
func (c *Coordinator) undoEnroll(ctx context.Context, req EnrollRequest, key string, before models.Student, created bool, code string, addedToCourse bool) error {
	ctx, cancel := c.cleanupContext(ctx, "enroll compensation")
	defer cancel()

	var errs error
	if created {
		if err := c.ledger.DeleteStudent(ctx, before.ID); err != nil && !isNotFound(err) {
			errs = multierr.Append(errs, fmt.Errorf("delete student: %w", err))
		}
	} else {
		if err := c.ledger.SaveStudent(ctx, before); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("restore student: %w", err))
		}
	}

	if addedToCourse {
		errs = multierr.Append(errs, c.removeCourseStudent(ctx, code, before.ID))
	}

	if errs != nil {
		c.log.Error("enrollment compensation failed",
			zap.String("course_code", code),
			zap.String("matric_no", before.MatricNo),
			zap.String("correlation_key", key),
			zap.Error(errs))
		c.record(ctx, auditlog.DeviceEvent{
			EventType:      audit.EventCompensationFailed,
			ActorID:        req.ActorID,
			CourseCode:     code,
			MatricNo:       before.MatricNo,
			CorrelationKey: key,
			Reason:         errs.Error(),
			Details:        map[string]string{"workflow": "enroll"},
		})
	}
	return errs
}

func (c *Coordinator) removeCourseStudent(ctx context.Context, code string, studentID primitive.ObjectID) error {
	unlock, err := c.locks.Lock(ctx, keylock.Course(code))
	if err != nil {
		return fmt.Errorf("lock course: %w", err)
	}
	defer unlock()

	course, err := c.ledger.FindCourse(ctx, code)
	if err != nil {
		return fmt.Errorf("load course: %w", err)
	}
	course.Students = models.WithoutID(course.Students, studentID)
	if err := c.ledger.SaveCourse(ctx, course); err != nil {
		return fmt.Errorf("save course: %w", err)
	}
	return nil
}
