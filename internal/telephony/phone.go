package telephony

import (
	"context"

	"github.com/google/uuid"

	"github.com/acme/telephony-bridge/internal/domain"
)

// EventType identifies a network connection event.
type EventType int

const (
	// EventPostDialWait fires when dialing pauses on a wait character in the dial string.
	EventPostDialWait EventType = iota + 1
	// EventDestroyed is terminal and fires at most once per connection.
	EventDestroyed
)

func (t EventType) String() string {
	switch t {
	case EventPostDialWait:
		return "post_dial_wait"
	case EventDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// SubscriptionID identifies one registered event handler on a connection.
type SubscriptionID uint64

// Event is delivered to subscribers. Subscription is the id of the handler
// receiving it, so a handler can unsubscribe itself.
type Event struct {
	Type              EventType
	Subscription      SubscriptionID
	RemainingPostDial string
}

// Handler receives connection events. Handlers may run on network stack goroutines.
type Handler func(Event)

// Connection is a call attempt owned by the network stack.
//
// Subscribing to EventDestroyed on a connection that is already destroyed
// delivers the event immediately.
type Connection interface {
	ID() uuid.UUID
	Address() string
	Subscribe(event EventType, fn Handler) SubscriptionID
	Unsubscribe(id SubscriptionID)
	RemainingPostDialString() string
	Destroyed() bool
	Hangup(ctx context.Context) error
}

// Phone is the network stack: service state plus the dial primitive.
//
// Dial returns an error wrapping apperrors.ErrCallState when the stack refuses
// to dial in its current call state. A nil connection with a nil error means the
// stack silently declined.
type Phone interface {
	ServiceState() domain.ServiceState
	Dial(ctx context.Context, address string) (Connection, error)
}
