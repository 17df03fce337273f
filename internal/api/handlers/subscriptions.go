package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/telephony-bridge/internal/bridge"
	"github.com/acme/telephony-bridge/internal/domain"
)

func (h *HandlerSet) findSubscriptions(ctx *fiber.Ctx) error {
	raw := ctx.Query("handle")
	if raw == "" {
		return fiber.NewError(http.StatusBadRequest, "handle is required")
	}
	handle := domain.LenientHandle(raw)

	resp := bridge.NewOutcomeResponse[*domain.Handle, *domain.Subscription]()
	h.bridge.FindSubscriptions(ctx.UserContext(), handle, resp)

	sub, err := resp.Wait(ctx.UserContext())
	var oe *bridge.OriginationError
	if errors.As(err, &oe) {
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"cause":  oe.Cause.String(),
			"detail": oe.Detail,
		})
	}
	if err != nil {
		return err
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"handle":       handle.String(),
		"callable":     sub != nil,
		"subscription": sub,
	})
}
