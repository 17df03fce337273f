package main

import (
	"context"

	"github.com/acme/telephony-bridge/internal/app"
	"github.com/acme/telephony-bridge/internal/worker/origination"
)

func main() {
	app.Main("originator", func(ctx context.Context, c *app.Container) error {
		return origination.New(c).Run(ctx)
	})
}
