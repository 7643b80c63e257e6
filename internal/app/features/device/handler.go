// internal/app/features/device/handler.go
package device

import (
	"net/http"

	apierrors "github.com/dalemusser/rollcall/internal/app/features/errors"
	"go.uber.org/zap"
)

// Link is the device end of the channel. *devicechan.Hub satisfies it.
type Link interface {
	http.Handler
	Connected() bool
}

// Pending reports commands still awaiting device feedback.
type Pending interface {
	Pending() int
}

type Handler struct {
	Link    Link
	Pending Pending
	Log     *zap.Logger
}

func NewHandler(link Link, pending Pending, logger *zap.Logger) *Handler {
	return &Handler{Link: link, Pending: pending, Log: logger}
}

// ServeSocket upgrades the device's connection. Authorization is checked by
// the link itself.
func (h *Handler) ServeSocket(w http.ResponseWriter, r *http.Request) {
	h.Log.Debug("device connection attempt", zap.String("remote_addr", r.RemoteAddr))
	h.Link.ServeHTTP(w, r)
}

// ServeStatus handles GET /device/status for signed-in users.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	pending := 0
	if h.Pending != nil {
		pending = h.Pending.Pending()
	}
	apierrors.OK(w, http.StatusOK, "", map[string]any{
		"connected":         h.Link.Connected(),
		"pendingOperations": pending,
	})
}
