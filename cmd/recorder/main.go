package main

import (
	"context"

	"github.com/acme/telephony-bridge/internal/app"
	"github.com/acme/telephony-bridge/internal/worker/lifecycle"
)

func main() {
	app.Main("recorder", func(ctx context.Context, c *app.Container) error {
		if err := c.EnsureSchema(ctx); err != nil {
			return err
		}
		return lifecycle.New(c).Run(ctx)
	})
}
