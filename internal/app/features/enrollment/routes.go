// internal/app/features/enrollment/routes.go
package enrollment

import (
	"github.com/dalemusser/rollcall/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted at /api/v1/courses/enroll.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/{courseCode}", h.ServeEnrolled)
	r.Post("/{lecturerEmail}", h.HandleEnroll)
	r.Delete("/{courseCode}/{matricNo}", h.HandleUnenroll)
	return r
}
