package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/acme/telephony-bridge/internal/telemetry"
)

const defaultConfigPath = "configs/config.yaml"

// Main is the shared entrypoint of the bridge binaries. It builds the
// container, starts tracing under component and runs fn until SIGINT or
// SIGTERM. It does not return.
func Main(component string, fn func(ctx context.Context, c *Container) error) {
	os.Exit(run(component, fn))
}

func run(component string, fn func(ctx context.Context, c *Container) error) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = defaultConfigPath
	}
	configPath := flag.String("config", path, "path to configuration file")
	flag.Parse()

	container, err := Build(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: bootstrap: %v\n", component, err)
		return 1
	}
	defer container.Close(context.Background())
	lg := container.Logger.With(zap.String("component", component))

	shutdown, err := telemetry.Setup(ctx, container.Config.Telemetry, container.Config.App, component)
	if err != nil {
		lg.Error("failed to initialize telemetry", zap.Error(err))
		return 1
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			lg.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	if err := container.EnsureTopics(ctx); err != nil {
		lg.Error("failed to ensure kafka topics", zap.Error(err))
		return 1
	}

	if err := fn(ctx, container); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("terminated", zap.Error(err))
		return 1
	}
	lg.Info("stopped")
	return 0
}
