// internal/app/features/auditlog/handler.go
package auditlog

import (
	"context"

	apierrors "github.com/dalemusser/rollcall/internal/app/features/errors"
	"github.com/dalemusser/rollcall/internal/app/store/audit"
	"go.uber.org/zap"
)

// Events is the read side of the audit store.
type Events interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, filter audit.QueryFilter) (int64, error)
}

type Handler struct {
	Events Events
	Log    *zap.Logger
	ErrLog *apierrors.ErrorLogger
}

// NewHandler constructs an Audit Log feature handler bound to
// the given event store and logger.
func NewHandler(events Events, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Events: events,
		Log:    logger,
		ErrLog: errLog,
	}
}
