// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/rollcall/internal/app/store/audit"
)

// listItem is a single audit event in the list response.
type listItem struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	Category       string            `json:"category"`
	EventType      string            `json:"eventType"`
	UserID         string            `json:"userId,omitempty"`
	ActorID        string            `json:"actorId,omitempty"`
	CourseCode     string            `json:"courseCode,omitempty"`
	MatricNo       string            `json:"matricNo,omitempty"`
	CorrelationKey string            `json:"correlationKey,omitempty"`
	IP             string            `json:"ip,omitempty"`
	Success        bool              `json:"success"`
	FailureReason  string            `json:"failureReason,omitempty"`
	Details        map[string]string `json:"details,omitempty"`
}

func toItem(e audit.Event) listItem {
	item := listItem{
		ID:             e.ID.Hex(),
		Timestamp:      e.Timestamp,
		Category:       e.Category,
		EventType:      e.EventType,
		CourseCode:     e.CourseCode,
		MatricNo:       e.MatricNo,
		CorrelationKey: e.CorrelationKey,
		IP:             e.IP,
		Success:        e.Success,
		FailureReason:  e.FailureReason,
		Details:        e.Details,
	}
	if e.UserID != nil {
		item.UserID = e.UserID.Hex()
	}
	if e.ActorID != nil {
		item.ActorID = e.ActorID.Hex()
	}
	return item
}

// listData is the body of a list response.
type listData struct {
	Events     []listItem `json:"events"`
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
	Total      int64      `json:"total"`
	HasPrev    bool       `json:"hasPrev"`
	HasNext    bool       `json:"hasNext"`
}

var eventTypes = map[string][]string{
	audit.CategoryAuth: {
		audit.EventSignup,
		audit.EventLoginSuccess,
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedUserDisabled,
		audit.EventLoginFailedRateLimit,
		audit.EventLogout,
	},
	audit.CategoryDevice: {
		audit.EventEnrollSucceeded,
		audit.EventEnrollFailed,
		audit.EventAttendanceMarked,
		audit.EventAttendanceFailed,
		audit.EventUnenrollSucceeded,
		audit.EventUnenrollFailed,
		audit.EventCompensationFailed,
	},
}

// knownEventType reports whether eventType belongs to category, or to any
// category when category is empty.
func knownEventType(category, eventType string) bool {
	for cat, types := range eventTypes {
		if category != "" && cat != category {
			continue
		}
		for _, t := range types {
			if t == eventType {
				return true
			}
		}
	}
	return false
}
