// internal/app/features/attendance/routes.go
package attendance

import (
	"github.com/dalemusser/rollcall/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted at /api/v1/courses/attendance.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Post("/", h.HandleTake)
	r.Get("/{courseCode}", h.ServeRecords)
	return r
}
