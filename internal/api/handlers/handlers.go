package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/acme/telephony-bridge/internal/bridge"
	"github.com/acme/telephony-bridge/internal/domain"
	callsvc "github.com/acme/telephony-bridge/internal/service/call"
	"github.com/acme/telephony-bridge/pkg/logger"
)

// Simulator controls the simulated network stack.
type Simulator interface {
	ServiceState() domain.ServiceState
	SetServiceState(state domain.ServiceState)
}

// ConnectionCounter reports connections mirrored across all nodes.
type ConnectionCounter interface {
	Count(ctx context.Context) (int64, error)
}

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

// Dependencies are the collaborators of the HTTP handlers. Only Bridge is
// required.
type Dependencies struct {
	Bridge    *bridge.Service
	Simulator Simulator
	Mirror    ConnectionCounter
	Calls     *callsvc.Service
	Logger    *logger.Logger
	Checks    map[string]HealthCheck
}

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	bridge    *bridge.Service
	simulator Simulator
	mirror    ConnectionCounter
	calls     *callsvc.Service
	logger    *logger.Logger
	checks    map[string]HealthCheck
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(deps Dependencies) *HandlerSet {
	lg := deps.Logger
	if lg == nil {
		lg = logger.NewNop()
	}
	calls := deps.Calls
	if calls == nil {
		calls = callsvc.NewService(nil, nil, nil)
	}
	return &HandlerSet{
		bridge:    deps.Bridge,
		simulator: deps.Simulator,
		mirror:    deps.Mirror,
		calls:     calls,
		logger:    lg.Named("http"),
		checks:    deps.Checks,
	}
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)

	api := app.Group("/api")
	v1 := api.Group("/v1")

	calls := v1.Group("/calls")
	calls.Post("/", h.startCall)
	calls.Get("/", h.listAttempts)
	calls.Get("/:id", h.getAttempt)

	v1.Get("/subscriptions", h.findSubscriptions)

	connections := v1.Group("/connections")
	connections.Get("/", h.listConnections)
	connections.Get("/:id", h.getConnection)
	connections.Get("/:id/events", h.connectionEvents)
	connections.Delete("/:id", h.hangupConnection)

	network := v1.Group("/network")
	network.Get("/state", h.getNetworkState)
	network.Put("/state", h.setNetworkState)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err), zap.String("path", ctx.Path()))
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":    message,
		"trace_id": ctx.GetRespHeader("Trace-Id"),
	})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.UserContext(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)
	for name, check := range h.checks {
		if err := check(healthCtx); err != nil {
			errs[name] = err.Error()
		}
	}

	body := fiber.Map{
		"status":             "ok",
		"errors":             errs,
		"family":             h.bridge.Family().Name(),
		"active_connections": h.bridge.Registry().Len(),
	}
	if h.mirror != nil {
		if n, err := h.mirror.Count(healthCtx); err != nil {
			errs["redis_mirror"] = err.Error()
		} else {
			body["mirrored_connections"] = n
		}
	}

	status := fiber.StatusOK
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
		body["status"] = "degraded"
	}

	return ctx.Status(status).JSON(body)
}
