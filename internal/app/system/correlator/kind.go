package correlator

// Kind is the type of device operation a pending slot waits on. Each kind
// has one outbound command name and one inbound feedback name.
type Kind string

const (
	KindEnroll     Kind = "enroll"
	KindAttendance Kind = "attendance"
	KindUnenroll   Kind = "unenroll"
)

var kinds = map[Kind]struct{ command, feedback string }{
	KindEnroll:     {"enroll", "enroll_feedback"},
	KindAttendance: {"take_attendance", "attendance_feedback"},
	KindUnenroll:   {"delete_enrolled_students", "delete_enrolled_students_feedback"},
}

// Command is the event name sent to the device.
func (k Kind) Command() string { return kinds[k].command }

// Feedback is the event name the device answers with.
func (k Kind) Feedback() string { return kinds[k].feedback }

// KindForFeedback maps an inbound event name back to its kind.
func KindForFeedback(name string) (Kind, bool) {
	for k, v := range kinds {
		if v.feedback == name {
			return k, true
		}
	}
	return "", false
}

// Status is how a pending operation ended.
type Status int

const (
	StatusSuccess Status = iota
	StatusDeviceError
	StatusTimeout
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusDeviceError:
		return "device_error"
	case StatusTimeout:
		return "timeout"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Outcome resolves a pending operation. Reason carries the device's error
// text for StatusDeviceError.
type Outcome struct {
	Status Status
	Reason string
}
