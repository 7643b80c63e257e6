// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Shutdown drops the device link, then disconnects MongoDB. Workflows still
// waiting on the device resolve as timeouts through their own deadlines.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	var err error
	if deps.Device != nil {
		logger.Info("closing device link")
		err = multierr.Append(err, deps.Device.Close())
	}
	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if derr := deps.MongoClient.Disconnect(ctx); derr != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(derr))
			err = multierr.Append(err, derr)
		}
	}
	return err
}
