// internal/app/features/lecturers/routes.go
package lecturers

import (
	"github.com/dalemusser/rollcall/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted at /api/v1/lecturers.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Post("/", h.HandleRegister)
	return r
}

// CourseRoutes serves a lecturer's selected courses. It is mounted beside
// the enrollment and attendance routers under /api/v1/courses.
func CourseRoutes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/{lecturerEmail}", h.ServeCourses)
	return r
}
