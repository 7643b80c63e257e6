// internal/app/features/device/routes.go
package device

import (
	"github.com/dalemusser/rollcall/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted at /device.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", h.ServeSocket)
	r.With(sm.RequireSignedIn).Get("/status", h.ServeStatus)
	return r
}
