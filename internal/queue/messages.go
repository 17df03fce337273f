package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/acme/telephony-bridge/internal/domain"
)

// Operation names the bridge entry point a request targets.
type Operation string

const (
	OperationOriginate         Operation = "originate"
	OperationFindSubscriptions Operation = "find_subscriptions"
)

// RequestMessage asks a bridge worker to run an operation on a handle.
type RequestMessage struct {
	RequestID  uuid.UUID         `json:"request_id"`
	Operation  Operation         `json:"operation"`
	Handle     string            `json:"handle"`
	Extras     map[string]string `json:"extras,omitempty"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// ReplyMessage carries the single reply to a RequestMessage.
type ReplyMessage struct {
	RequestID     uuid.UUID            `json:"request_id"`
	Operation     Operation            `json:"operation"`
	Success       bool                 `json:"success"`
	ConnectionID  *uuid.UUID           `json:"connection_id,omitempty"`
	RemoteAddress string               `json:"remote_address,omitempty"`
	Subscription  *domain.Subscription `json:"subscription,omitempty"`
	Cause         string               `json:"cause,omitempty"`
	Detail        string               `json:"detail,omitempty"`
	RepliedAt     time.Time            `json:"replied_at"`
}

// LifecycleMessage is the wire form of domain.LifecycleEvent.
type LifecycleMessage struct {
	EventID      uuid.UUID `json:"event_id"`
	Type         string    `json:"type"`
	RequestID    uuid.UUID `json:"request_id"`
	ConnectionID uuid.UUID `json:"connection_id"`
	Family       string    `json:"family"`
	Handle       string    `json:"handle"`
	Cause        string    `json:"cause,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	PostDialTail string    `json:"post_dial_tail,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewLifecycleMessage converts an event to its wire form.
func NewLifecycleMessage(ev domain.LifecycleEvent) LifecycleMessage {
	msg := LifecycleMessage{
		EventID:      ev.ID,
		Type:         string(ev.Type),
		RequestID:    ev.RequestID,
		ConnectionID: ev.ConnectionID,
		Family:       ev.Family,
		Handle:       ev.Handle,
		Detail:       ev.Detail,
		PostDialTail: ev.PostDialTail,
		OccurredAt:   ev.OccurredAt,
	}
	if ev.Cause != nil {
		msg.Cause = ev.Cause.String()
	}
	return msg
}

// Event converts the wire form back into a domain event.
func (m LifecycleMessage) Event() (domain.LifecycleEvent, error) {
	ev := domain.LifecycleEvent{
		ID:           m.EventID,
		Type:         domain.LifecycleEventType(m.Type),
		RequestID:    m.RequestID,
		ConnectionID: m.ConnectionID,
		Family:       m.Family,
		Handle:       m.Handle,
		Detail:       m.Detail,
		PostDialTail: m.PostDialTail,
		OccurredAt:   m.OccurredAt,
	}
	if m.Cause != "" {
		cause, err := domain.ParseDisconnectCause(m.Cause)
		if err != nil {
			return domain.LifecycleEvent{}, err
		}
		ev.Cause = &cause
	}
	return ev, nil
}
