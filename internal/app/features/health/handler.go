package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/rollcall/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger is satisfied by *mongo.Client.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// Device reports the attendance device link.
type Device interface {
	Connected() bool
}

// Pending reports how many device operations are awaiting feedback.
type Pending interface {
	Pending() int
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	DB      Pinger
	Device  Device
	Pending Pending
	Log     *zap.Logger
}

// NewHandler constructs a health Handler.
func NewHandler(db Pinger, device Device, pending Pending, logger *zap.Logger) *Handler {
	return &Handler{
		DB:      db,
		Device:  device,
		Pending: pending,
		Log:     logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status            string `json:"status"`
	Database          string `json:"database"`
	Device            string `json:"device"`
	PendingOperations int    `json:"pendingOperations"`
	Message           string `json:"message,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "device":"connected", "pendingOperations":0 }
//
// A missing device is reported as "degraded" with a 200, since lookups and
// sign-in still work. On DB failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
		Device:   "connected",
	}
	if h.Pending != nil {
		resp.PendingOperations = h.Pending.Pending()
	}
	if h.Device == nil || !h.Device.Connected() {
		resp.Status = "degraded"
		resp.Device = "disconnected"
	}

	if err := h.DB.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	_ = json.NewEncoder(w).Encode(resp)
}
