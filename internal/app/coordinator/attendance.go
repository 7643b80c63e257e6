package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/rollcall/internal/app/store/audit"
	"github.com/dalemusser/rollcall/internal/app/store/ledger"
	"github.com/dalemusser/rollcall/internal/app/system/auditlog"
	"github.com/dalemusser/rollcall/internal/app/system/correlator"
	"github.com/dalemusser/rollcall/internal/app/system/keylock"
	"github.com/dalemusser/rollcall/internal/app/system/normalize"
	"github.com/dalemusser/rollcall/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AttendanceRequest identifies the student to mark present today.
type AttendanceRequest struct {
	CourseCode string
	MatricNo   string
	ActorID    string
}

type attendancePayload struct {
	CorrelationKey string `json:"correlationKey"`
	CourseCode     string `json:"courseCode"`
	MatricNo       string `json:"matricNo"`
}

const alreadyMarked = "Attendance has already been marked for this student today"

// TakeAttendance asks the device to verify the student and, once it
// confirms, records them present for the current day. Nothing is written
// unless the device confirms.
func (c *Coordinator) TakeAttendance(ctx context.Context, req AttendanceRequest) (res Result, err error) {
	start := time.Now()
	defer func() { observe("attendance", start, err) }()

	req.CourseCode = normalize.CourseCode(req.CourseCode)
	req.MatricNo = normalize.MatricNo(req.MatricNo)
	if req.CourseCode == "" || req.MatricNo == "" {
		return fail(ErrInvalid, "Course code and matric number are required", nil)
	}

	// The student lock keeps enroll and unenroll of this student out until
	// the mark is committed or abandoned.
	unlock, err := c.lock(ctx, keylock.Student(req.MatricNo), keylock.Attendance(req.CourseCode, req.MatricNo))
	if err != nil {
		return Result{Message: Reason(err)}, err
	}
	defer unlock()

	course, student, err := c.resolveEnrollment(ctx, req.CourseCode, req.MatricNo)
	if err != nil {
		return Result{Message: Reason(err)}, err
	}

	dayStart, dayEnd, day := c.dayWindow(c.cfg.Now())
	ev, err := c.ledger.FindAttendanceEvent(ctx, course.ID, dayStart, dayEnd)
	switch {
	case err == nil:
		if ev.IsPresent(student.ID) {
			return fail(ErrAlreadyMarked, alreadyMarked, nil)
		}
	case !isNotFound(err):
		return storageFailure(err)
	}

	key, outcome, sendErr := c.exchange(ctx, correlator.KindAttendance, c.attendanceTimeout(), func(key string) any {
		return attendancePayload{
			CorrelationKey: key,
			CourseCode:     course.Code,
			MatricNo:       student.MatricNo,
		}
	})
	if sendErr != nil || outcome.Status != correlator.StatusSuccess {
		reason := "Error occurred during attendance marking"
		if sendErr == nil && outcome.Status == correlator.StatusDeviceError && outcome.Reason != "" {
			reason += ": " + outcome.Reason
		}
		res, err = exchangeFailure(key, outcome, sendErr, reason)
		c.log.Warn("attendance not confirmed by device",
			zap.String("course_code", course.Code),
			zap.String("matric_no", student.MatricNo),
			zap.String("correlation_key", key),
			zap.Error(err))
		c.record(ctx, auditlog.DeviceEvent{
			EventType:      audit.EventAttendanceFailed,
			ActorID:        req.ActorID,
			CourseCode:     course.Code,
			MatricNo:       student.MatricNo,
			CorrelationKey: key,
			Reason:         Reason(err),
		})
		return res, err
	}

	// The device has confirmed; the write goes through even if the caller
	// has gone away.
	wctx, cancel := c.cleanupContext(ctx, "attendance commit")
	defer cancel()
	if err := c.markPresent(wctx, course, student.ID, dayStart, dayEnd, day); err != nil {
		if errors.Is(err, ErrAlreadyMarked) {
			res, err := fail(ErrAlreadyMarked, alreadyMarked, nil)
			res.CorrelationKey = key
			return res, err
		}
		c.log.Error("attendance confirmed by device but not recorded",
			zap.String("course_code", course.Code),
			zap.String("matric_no", student.MatricNo),
			zap.String("correlation_key", key),
			zap.Error(err))
		res, err := storageFailure(err)
		res.CorrelationKey = key
		return res, err
	}

	c.log.Info("attendance marked",
		zap.String("course_code", course.Code),
		zap.String("matric_no", student.MatricNo),
		zap.String("day", day),
		zap.String("correlation_key", key))
	c.record(ctx, auditlog.DeviceEvent{
		EventType:      audit.EventAttendanceMarked,
		ActorID:        req.ActorID,
		CourseCode:     course.Code,
		MatricNo:       student.MatricNo,
		CorrelationKey: key,
		Success:        true,
		Details:        map[string]string{"day": day},
	})
	return Result{Success: true, Message: "Attendance marked successfully", CorrelationKey: key}, nil
}

// markPresent adds the student to the day's event, creating the event and
// linking it to the course on the first mark of the day. It returns
// ErrAlreadyMarked if another workflow got there first.
func (c *Coordinator) markPresent(ctx context.Context, course models.Course, studentID primitive.ObjectID, dayStart, dayEnd time.Time, day string) error {
	unlock, err := c.locks.Lock(ctx, keylock.AttendanceDay(course.ID.Hex(), day))
	if err != nil {
		return err
	}
	defer unlock()

	ev, err := c.ledger.FindAttendanceEvent(ctx, course.ID, dayStart, dayEnd)
	if isNotFound(err) {
		ev, err = c.ledger.CreateAttendanceEvent(ctx, models.AttendanceEvent{
			CourseID:        course.ID,
			Date:            dayStart,
			Day:             day,
			StudentsPresent: []primitive.ObjectID{studentID},
		})
		if err == nil {
			return c.linkAttendance(ctx, course.Code, ev.ID)
		}
		if !errors.Is(err, ledger.ErrDuplicate) {
			return err
		}
		// Created by another process after our lookup.
		ev, err = c.ledger.FindAttendanceEvent(ctx, course.ID, dayStart, dayEnd)
	}
	if err != nil {
		return err
	}
	if ev.IsPresent(studentID) {
		return ErrAlreadyMarked
	}
	ev.StudentsPresent = models.WithID(ev.StudentsPresent, studentID)
	if err := c.ledger.SaveAttendanceEvent(ctx, ev); err != nil {
		return err
	}
	return c.linkAttendance(ctx, course.Code, ev.ID)
}

func (c *Coordinator) linkAttendance(ctx context.Context, code string, eventID primitive.ObjectID) error {
	unlock, err := c.locks.Lock(ctx, keylock.Course(code))
	if err != nil {
		return err
	}
	defer unlock()

	course, err := c.ledger.FindCourse(ctx, code)
	if err != nil {
		return err
	}
	if models.ContainsID(course.Attendance, eventID) {
		return nil
	}
	course.Attendance = models.WithID(course.Attendance, eventID)
	return c.ledger.SaveCourse(ctx, course)
}

// resolveEnrollment loads the course and student and checks that the
// student is on the course.
func (c *Coordinator) resolveEnrollment(ctx context.Context, code, matricNo string) (models.Course, models.Student, error) {
	course, err := c.ledger.FindCourse(ctx, code)
	if isNotFound(err) {
		_, ferr := fail(ErrNotFound, "Course not found", err)
		return models.Course{}, models.Student{}, ferr
	}
	if err != nil {
		_, ferr := storageFailure(err)
		return models.Course{}, models.Student{}, ferr
	}
	student, err := c.ledger.FindStudent(ctx, matricNo)
	if isNotFound(err) {
		_, ferr := fail(ErrNotFound, "Student not found", err)
		return models.Course{}, models.Student{}, ferr
	}
	if err != nil {
		_, ferr := storageFailure(err)
		return models.Course{}, models.Student{}, ferr
	}
	if !student.HasCourse(course.ID) {
		_, ferr := fail(ErrNotEnrolled, "Student is not enrolled in the course", nil)
		return models.Course{}, models.Student{}, ferr
	}
	return course, student, nil
}
