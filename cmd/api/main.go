package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/acme/telephony-bridge/internal/api"
	"github.com/acme/telephony-bridge/internal/app"
	"github.com/acme/telephony-bridge/internal/scheduler"
)

func main() {
	app.Main("api", func(ctx context.Context, c *app.Container) error {
		lg := c.Logger

		// Entries left by a previous run of this node describe calls that no longer exist.
		if n, err := c.Telephony().Mirror.Purge(ctx); err != nil {
			lg.Warn("purge stale mirrored connections", zap.Error(err))
		} else if n > 0 {
			lg.Info("purged stale mirrored connections", zap.Int("count", n))
		}

		go func() {
			if err := scheduler.New(c).Run(ctx); err != nil && ctx.Err() == nil {
				lg.Error("mirror reconciler stopped", zap.Error(err))
			}
		}()

		lg.Info("starting http server",
			zap.Int("port", c.Config.HTTP.Port),
			zap.String("family", c.Bridge().Family().Name()),
		)
		return api.NewServer(c.Config.HTTP, c.HandlerSet()).Start(ctx)
	})
}
