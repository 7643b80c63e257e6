// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	apierrors "github.com/dalemusser/rollcall/internal/app/features/errors"
	"github.com/dalemusser/rollcall/internal/app/store/audit"
	"github.com/dalemusser/rollcall/internal/app/system/normalize"
	"github.com/dalemusser/rollcall/internal/app/system/timeouts"
	"github.com/dalemusser/rollcall/internal/domain/models"
	"go.uber.org/zap"
)

const pageSize = 50

// ServeList handles GET /api/v1/audit. Filters: category, event_type,
// course_code, matric_no, start_date and end_date (YYYY-MM-DD, UTC), page.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))
	eventType := strings.TrimSpace(q.Get("event_type"))

	if category != "" {
		if _, ok := eventTypes[category]; !ok {
			apierrors.Fail(w, http.StatusBadRequest, "Unknown category", "invalid")
			return
		}
	}
	if eventType != "" && !knownEventType(category, eventType) {
		apierrors.Fail(w, http.StatusBadRequest, "Unknown event type", "invalid")
		return
	}

	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	filter := audit.QueryFilter{
		Category:  category,
		EventType: eventType,
		Limit:     pageSize,
		Offset:    int64((page - 1) * pageSize),
	}
	if code := q.Get("course_code"); code != "" {
		filter.CourseCode = normalize.CourseCode(code)
	}
	if matric := q.Get("matric_no"); matric != "" {
		filter.MatricNo = normalize.MatricNo(matric)
	}

	if s := strings.TrimSpace(q.Get("start_date")); s != "" {
		t, err := time.Parse(models.DayLayout, s)
		if err != nil {
			apierrors.Fail(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD", "invalid")
			return
		}
		filter.StartTime = &t
	}
	if s := strings.TrimSpace(q.Get("end_date")); s != "" {
		t, err := time.Parse(models.DayLayout, s)
		if err != nil {
			apierrors.Fail(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD", "invalid")
			return
		}
		// End of day
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &endOfDay
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "audit log list")
	defer cancel()

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.Log.Error("failed to query audit events", zap.Error(err))
		h.ErrLog.LogServerError(w, r, "database error", err, "A database error occurred.")
		return
	}
	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		h.Log.Error("failed to count audit events", zap.Error(err))
		h.ErrLog.LogServerError(w, r, "database error", err, "A database error occurred.")
		return
	}

	items := make([]listItem, 0, len(events))
	for _, e := range events {
		items = append(items, toItem(e))
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}

	apierrors.OK(w, http.StatusOK, "", listData{
		Events:     items,
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	})
}
