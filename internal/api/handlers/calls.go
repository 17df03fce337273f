package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/telephony-bridge/internal/bridge"
	"github.com/acme/telephony-bridge/internal/domain"
)

type startCallRequest struct {
	Handle string            `json:"handle"`
	Extras map[string]string `json:"extras"`
	// Async enqueues the request for the origination worker instead of
	// dialing in the request goroutine.
	Async bool `json:"async"`
}

type connectionResponse struct {
	ID            uuid.UUID              `json:"id"`
	RequestID     uuid.UUID              `json:"request_id"`
	Family        string                 `json:"family"`
	Handle        string                 `json:"handle"`
	RemoteAddress string                 `json:"remote_address"`
	State         bridge.ConnectionState `json:"state"`
	CreatedAt     time.Time              `json:"created_at"`
}

type failureResponse struct {
	RequestID uuid.UUID `json:"request_id"`
	Cause     string    `json:"cause"`
	Detail    string    `json:"detail"`
}

type attemptResponse struct {
	RequestID    uuid.UUID  `json:"request_id"`
	ConnectionID *uuid.UUID `json:"connection_id,omitempty"`
	Family       string     `json:"family"`
	Handle       string     `json:"handle"`
	Outcome      string     `json:"outcome"`
	Cause        string     `json:"cause,omitempty"`
	Detail       string     `json:"detail,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

func (h *HandlerSet) startCall(ctx *fiber.Ctx) error {
	var body startCallRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	req := domain.NewCallRequest(domain.LenientHandle(body.Handle), body.Extras)

	if body.Async {
		return h.enqueueCall(ctx, req, body.Handle)
	}

	resp := bridge.NewOutcomeResponse[*domain.CallRequest, *bridge.Connection]()
	h.bridge.StartCall(ctx.UserContext(), req, resp)

	conn, err := resp.Wait(ctx.UserContext())
	var oe *bridge.OriginationError
	if errors.As(err, &oe) {
		return ctx.Status(causeStatus(oe.Cause)).JSON(failureResponse{
			RequestID: req.ID,
			Cause:     oe.Cause.String(),
			Detail:    oe.Detail,
		})
	}
	if err != nil {
		return err
	}

	return ctx.Status(http.StatusCreated).JSON(toConnectionResponse(conn))
}

func (h *HandlerSet) enqueueCall(ctx *fiber.Ctx, req *domain.CallRequest, raw string) error {
	if err := h.calls.Enqueue(ctx.UserContext(), req, raw); err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{"request_id": req.ID})
}

func (h *HandlerSet) getAttempt(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request id")
	}

	attempt, err := h.calls.Attempt(ctx.UserContext(), id)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(toAttemptResponse(attempt))
}

func (h *HandlerSet) listAttempts(ctx *fiber.Ctx) error {
	attempts, err := h.calls.Recent(ctx.UserContext(), ctx.QueryInt("limit"))
	if err != nil {
		return translateError(err)
	}
	resp := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		resp = append(resp, toAttemptResponse(a))
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"attempts": resp})
}

func toConnectionResponse(c *bridge.Connection) connectionResponse {
	return connectionResponse{
		ID:            c.ID(),
		RequestID:     c.Request().ID,
		Family:        c.Family(),
		Handle:        c.Request().Handle.String(),
		RemoteAddress: c.RemoteAddress(),
		State:         c.State(),
		CreatedAt:     c.CreatedAt(),
	}
}

func toAttemptResponse(a *domain.OriginationAttempt) attemptResponse {
	resp := attemptResponse{
		RequestID:    a.RequestID,
		ConnectionID: a.ConnectionID,
		Family:       a.Family,
		Handle:       a.Handle,
		Outcome:      string(a.Outcome),
		Detail:       a.Detail,
		CreatedAt:    a.CreatedAt,
		EndedAt:      a.EndedAt,
	}
	if a.Cause != nil {
		resp.Cause = a.Cause.String()
	}
	return resp
}
