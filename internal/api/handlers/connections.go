package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/telephony"
)

type lifecycleEventResponse struct {
	ID           uuid.UUID `json:"id"`
	Type         string    `json:"type"`
	RequestID    uuid.UUID `json:"request_id"`
	Family       string    `json:"family"`
	Handle       string    `json:"handle,omitempty"`
	Cause        string    `json:"cause,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	PostDialTail string    `json:"post_dial_tail,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type networkConnectionResponse struct {
	ID                uuid.UUID `json:"id"`
	Address           string    `json:"address"`
	RemainingPostDial string    `json:"remaining_post_dial,omitempty"`
	// Destroyed is true when the stack has ended the call but the registry
	// has not caught up yet.
	Destroyed bool `json:"destroyed"`
}

func (h *HandlerSet) listConnections(ctx *fiber.Ctx) error {
	snapshot := h.bridge.Registry().Snapshot()
	out := make([]networkConnectionResponse, 0, len(snapshot))
	for _, nc := range snapshot {
		out = append(out, toNetworkConnectionResponse(nc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })

	return ctx.Status(http.StatusOK).JSON(fiber.Map{"connections": out, "count": len(out)})
}

func (h *HandlerSet) getConnection(ctx *fiber.Ctx) error {
	nc, err := h.lookupConnection(ctx)
	if err != nil {
		return err
	}
	return ctx.Status(http.StatusOK).JSON(toNetworkConnectionResponse(nc))
}

// hangupConnection asks the network stack to end the call. The registry
// entry disappears once the stack reports destruction.
func (h *HandlerSet) hangupConnection(ctx *fiber.Ctx) error {
	nc, err := h.lookupConnection(ctx)
	if err != nil {
		return err
	}
	if err := nc.Hangup(ctx.UserContext()); err != nil {
		return translateError(err)
	}
	return ctx.SendStatus(http.StatusAccepted)
}

// connectionEvents pages through the recorded timeline of a connection,
// including connections that no longer exist.
func (h *HandlerSet) connectionEvents(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid connection id")
	}

	page, err := h.calls.Timeline(ctx.UserContext(), id, ctx.QueryInt("limit"), ctx.Query("page_token"))
	if err != nil {
		return translateError(err)
	}

	events := make([]lifecycleEventResponse, 0, len(page.Events))
	for _, ev := range page.Events {
		events = append(events, toLifecycleEventResponse(ev))
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"events":          events,
		"next_page_token": page.NextToken,
	})
}

func (h *HandlerSet) lookupConnection(ctx *fiber.Ctx) (telephony.Connection, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return nil, fiber.NewError(http.StatusBadRequest, "invalid connection id")
	}
	nc, ok := h.bridge.Registry().Lookup(id)
	if !ok {
		return nil, fiber.NewError(http.StatusNotFound, "resource not found")
	}
	return nc, nil
}

func toNetworkConnectionResponse(nc telephony.Connection) networkConnectionResponse {
	return networkConnectionResponse{
		ID:                nc.ID(),
		Address:           nc.Address(),
		RemainingPostDial: nc.RemainingPostDialString(),
		Destroyed:         nc.Destroyed(),
	}
}

func toLifecycleEventResponse(ev domain.LifecycleEvent) lifecycleEventResponse {
	resp := lifecycleEventResponse{
		ID:           ev.ID,
		Type:         string(ev.Type),
		RequestID:    ev.RequestID,
		Family:       ev.Family,
		Handle:       ev.Handle,
		Detail:       ev.Detail,
		PostDialTail: ev.PostDialTail,
		OccurredAt:   ev.OccurredAt,
	}
	if ev.Cause != nil {
		resp.Cause = ev.Cause.String()
	}
	return resp
}
