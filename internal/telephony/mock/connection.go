package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/acme/telephony-bridge/internal/telephony"
)

type subscription struct {
	event telephony.EventType
	fn    telephony.Handler
}

// Connection simulates a network connection and its event delivery.
type Connection struct {
	id      uuid.UUID
	address string

	mu        sync.Mutex
	nextID    telephony.SubscriptionID
	handlers  map[telephony.SubscriptionID]subscription
	postDial  string
	destroyed bool
}

var _ telephony.Connection = (*Connection)(nil)

// NewConnection creates a live connection with an optional post-dial tail.
func NewConnection(address, postDial string) *Connection {
	return &Connection{
		id:       uuid.New(),
		address:  address,
		handlers: make(map[telephony.SubscriptionID]subscription),
		postDial: postDial,
	}
}

func (c *Connection) ID() uuid.UUID   { return c.id }
func (c *Connection) Address() string { return c.address }

// Subscribe registers fn for event. Subscribing to EventDestroyed after the
// connection was destroyed invokes fn synchronously.
func (c *Connection) Subscribe(event telephony.EventType, fn telephony.Handler) telephony.SubscriptionID {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	if event == telephony.EventDestroyed && c.destroyed {
		c.mu.Unlock()
		fn(telephony.Event{Type: event, Subscription: id})
		return id
	}
	c.handlers[id] = subscription{event: event, fn: fn}
	c.mu.Unlock()
	return id
}

// Unsubscribe removes a handler; unknown ids are ignored.
func (c *Connection) Unsubscribe(id telephony.SubscriptionID) {
	c.mu.Lock()
	delete(c.handlers, id)
	c.mu.Unlock()
}

// Subscribers returns the number of registered handlers.
func (c *Connection) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

func (c *Connection) RemainingPostDialString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.postDial
}

func (c *Connection) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// Hangup tears the connection down locally.
func (c *Connection) Hangup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Destroy()
	return nil
}

// Destroy marks the connection destroyed and notifies subscribers once.
// Later calls are no-ops.
func (c *Connection) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	targets := c.snapshot(telephony.EventDestroyed)
	c.mu.Unlock()

	deliver(targets, telephony.Event{Type: telephony.EventDestroyed})
}

// PostDialWait simulates the stack pausing on a wait character. It reports
// false when the connection is already destroyed.
func (c *Connection) PostDialWait() bool {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return false
	}
	tail := c.postDial
	targets := c.snapshot(telephony.EventPostDialWait)
	c.mu.Unlock()

	deliver(targets, telephony.Event{Type: telephony.EventPostDialWait, RemainingPostDial: tail})
	return true
}

// SetPostDial replaces the remaining post-dial string.
func (c *Connection) SetPostDial(tail string) {
	c.mu.Lock()
	c.postDial = tail
	c.mu.Unlock()
}

type target struct {
	id telephony.SubscriptionID
	fn telephony.Handler
}

// snapshot must be called with c.mu held.
func (c *Connection) snapshot(event telephony.EventType) []target {
	out := make([]target, 0, len(c.handlers))
	for id, sub := range c.handlers {
		if sub.event == event {
			out = append(out, target{id: id, fn: sub.fn})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func deliver(targets []target, ev telephony.Event) {
	for _, t := range targets {
		ev.Subscription = t.id
		t.fn(ev)
	}
}
