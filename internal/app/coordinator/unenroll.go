package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/rollcall/internal/app/store/audit"
	"github.com/dalemusser/rollcall/internal/app/system/auditlog"
	"github.com/dalemusser/rollcall/internal/app/system/correlator"
	"github.com/dalemusser/rollcall/internal/app/system/keylock"
	"github.com/dalemusser/rollcall/internal/app/system/normalize"
	"github.com/dalemusser/rollcall/internal/domain/models"
	"go.uber.org/zap"
)

// UnenrollRequest identifies the enrollment to remove.
type UnenrollRequest struct {
	CourseCode string
	MatricNo   string
	ActorID    string
}

type unenrollPayload struct {
	CorrelationKey string `json:"correlationKey"`
	MatricNo       string `json:"matricNo"`
	CourseCode     string `json:"courseCode"`
}

// Unenroll removes a student from a course once the device has deleted
// them. The student record itself is kept.
func (c *Coordinator) Unenroll(ctx context.Context, req UnenrollRequest) (res Result, err error) {
	start := time.Now()
	defer func() { observe("unenroll", start, err) }()

	req.CourseCode = normalize.CourseCode(req.CourseCode)
	req.MatricNo = normalize.MatricNo(req.MatricNo)
	if req.CourseCode == "" || req.MatricNo == "" {
		return fail(ErrInvalid, "Course code and matric number are required", nil)
	}

	unlock, err := c.lock(ctx, keylock.Student(req.MatricNo))
	if err != nil {
		return Result{Message: Reason(err)}, err
	}
	defer unlock()

	course, student, err := c.resolveEnrollment(ctx, req.CourseCode, req.MatricNo)
	if err != nil {
		return Result{Message: Reason(err)}, err
	}

	key, outcome, sendErr := c.exchange(ctx, correlator.KindUnenroll, c.unenrollTimeout(), func(key string) any {
		return unenrollPayload{
			CorrelationKey: key,
			MatricNo:       student.MatricNo,
			CourseCode:     course.Code,
		}
	})
	if sendErr != nil || outcome.Status != correlator.StatusSuccess {
		res, err = exchangeFailure(key, outcome, sendErr, "Unenrollment failed")
		c.log.Warn("unenrollment not confirmed by device",
			zap.String("course_code", course.Code),
			zap.String("matric_no", student.MatricNo),
			zap.String("correlation_key", key),
			zap.Error(err))
		c.record(ctx, auditlog.DeviceEvent{
			EventType:      audit.EventUnenrollFailed,
			ActorID:        req.ActorID,
			CourseCode:     course.Code,
			MatricNo:       student.MatricNo,
			CorrelationKey: key,
			Reason:         Reason(err),
		})
		return res, err
	}

	wctx, cancel := c.cleanupContext(ctx, "unenroll commit")
	defer cancel()
	if werr := c.removeEnrollment(wctx, course.Code, student.MatricNo); werr != nil {
		c.log.Error("unenrollment confirmed by device but not recorded",
			zap.String("course_code", course.Code),
			zap.String("matric_no", student.MatricNo),
			zap.String("correlation_key", key),
			zap.Error(werr))
		res, err = storageFailure(werr)
		res.CorrelationKey = key
		return res, err
	}

	c.log.Info("student unenrolled",
		zap.String("course_code", course.Code),
		zap.String("matric_no", student.MatricNo),
		zap.String("correlation_key", key))
	c.record(ctx, auditlog.DeviceEvent{
		EventType:      audit.EventUnenrollSucceeded,
		ActorID:        req.ActorID,
		CourseCode:     course.Code,
		MatricNo:       student.MatricNo,
		CorrelationKey: key,
		Success:        true,
	})
	return Result{Success: true, Message: "Student deleted from course successfully", CorrelationKey: key}, nil
}

// removeEnrollment drops both references. The caller holds the student lock.
func (c *Coordinator) removeEnrollment(ctx context.Context, code, matricNo string) error {
	student, err := c.ledger.FindStudent(ctx, matricNo)
	if err != nil {
		return fmt.Errorf("load student: %w", err)
	}

	unlock, err := c.locks.Lock(ctx, keylock.Course(code))
	if err != nil {
		return fmt.Errorf("lock course: %w", err)
	}
	defer unlock()

	course, err := c.ledger.FindCourse(ctx, code)
	if err != nil {
		return fmt.Errorf("load course: %w", err)
	}
	student.Courses = models.WithoutID(student.Courses, course.ID)
	if err := c.ledger.SaveStudent(ctx, student); err != nil {
		return fmt.Errorf("save student: %w", err)
	}
	course.Students = models.WithoutID(course.Students, student.ID)
	if err := c.ledger.SaveCourse(ctx, course); err != nil {
		return fmt.Errorf("save course: %w", err)
	}
	return nil
}
