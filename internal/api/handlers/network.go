package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/acme/telephony-bridge/internal/domain"
)

type networkStateRequest struct {
	State string `json:"state"`
}

func (h *HandlerSet) getNetworkState(ctx *fiber.Ctx) error {
	if h.simulator == nil {
		return fiber.NewError(http.StatusNotImplemented, "network simulator not available")
	}
	return ctx.Status(http.StatusOK).JSON(stateBody(h.simulator.ServiceState()))
}

func (h *HandlerSet) setNetworkState(ctx *fiber.Ctx) error {
	if h.simulator == nil {
		return fiber.NewError(http.StatusNotImplemented, "network simulator not available")
	}

	var body networkStateRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	state, err := domain.ParseServiceState(body.State)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	h.simulator.SetServiceState(state)
	h.logger.Info("network service state changed", zap.Stringer("service_state", state))
	return ctx.Status(http.StatusOK).JSON(stateBody(state))
}

func stateBody(state domain.ServiceState) fiber.Map {
	return fiber.Map{"state": state.String(), "code": int(state)}
}
