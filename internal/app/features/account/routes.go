// internal/app/features/account/routes.go
package account

import "github.com/go-chi/chi/v5"

// Routes is mounted at /api/v1/auth.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/signup", h.HandleSignup)
	r.Post("/login", h.HandleLogin)
	r.Post("/logout", h.HandleLogout)
	return r
}
