// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/rollcall/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Enroll:     appCfg.EnrollTimeout,
		Attendance: appCfg.AttendanceTimeout,
		Unenroll:   appCfg.UnenrollTimeout,
	})
	cur := timeouts.Current()
	logger.Info("device deadlines configured",
		zap.Duration("enroll", cur.Enroll),
		zap.Duration("attendance", cur.Attendance),
		zap.Duration("unenroll", cur.Unenroll))
	return nil
}
