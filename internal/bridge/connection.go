package bridge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/telephony"
)

// ConnectionState is the lifecycle state of a bridged connection.
type ConnectionState string

const (
	StateActive       ConnectionState = "active"
	StatePostDialWait ConnectionState = "post_dial_wait"
	StateDestroyed    ConnectionState = "destroyed"
)

// Listener observes a bridged connection. Either callback may be nil.
type Listener struct {
	OnPostDialWait func(c *Connection, remaining string)
	OnDestroyed    func(c *Connection)
}

// ListenerID identifies a listener added with AddListener.
type ListenerID uint64

// Connection is the call object handed to callers. It wraps exactly one
// network connection and shares its id.
type Connection struct {
	family    string
	request   *domain.CallRequest
	network   telephony.Connection
	remote    string
	createdAt time.Time

	mu        sync.Mutex
	state     ConnectionState
	postDial  string
	nextID    ListenerID
	listeners map[ListenerID]Listener
}

// NewConnection wraps nc. remote is the family-specific display form of the
// dialed address.
func NewConnection(family string, req *domain.CallRequest, nc telephony.Connection, remote string) *Connection {
	return &Connection{
		family:    family,
		request:   req,
		network:   nc,
		remote:    remote,
		createdAt: time.Now().UTC(),
		state:     StateActive,
		listeners: make(map[ListenerID]Listener),
	}
}

func (c *Connection) ID() uuid.UUID                 { return c.network.ID() }
func (c *Connection) Family() string                { return c.family }
func (c *Connection) Request() *domain.CallRequest  { return c.request }
func (c *Connection) Network() telephony.Connection { return c.network }
func (c *Connection) RemoteAddress() string         { return c.remote }
func (c *Connection) CreatedAt() time.Time          { return c.createdAt }

func (c *Connection) String() string {
	return fmt.Sprintf("Connection(%s %s %s)", c.ID(), c.family, c.remote)
}

// State returns the current lifecycle state.
func (c *Connection) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PostDialString returns the tail reported by the last post-dial wait.
func (c *Connection) PostDialString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.postDial
}

// AddListener registers l. Listeners added after destruction are never called.
func (c *Connection) AddListener(l Listener) ListenerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	if c.state != StateDestroyed {
		c.listeners[c.nextID] = l
	}
	return c.nextID
}

// RemoveListener unregisters a listener; unknown ids are ignored.
func (c *Connection) RemoveListener(id ListenerID) {
	c.mu.Lock()
	delete(c.listeners, id)
	c.mu.Unlock()
}

// Disconnect asks the network stack to hang up. Destruction is reported
// asynchronously through the destroyed event.
func (c *Connection) Disconnect(ctx context.Context) error {
	if err := c.network.Hangup(ctx); err != nil {
		return fmt.Errorf("connection %s: hangup: %w", c.ID(), err)
	}
	return nil
}

// SetPostDialWait records the remaining dial string and notifies listeners.
func (c *Connection) SetPostDialWait(remaining string) {
	c.mu.Lock()
	if c.state == StateDestroyed {
		c.mu.Unlock()
		return
	}
	c.state = StatePostDialWait
	c.postDial = remaining
	targets := c.snapshot()
	c.mu.Unlock()

	for _, l := range targets {
		if l.OnPostDialWait != nil {
			l.OnPostDialWait(c, remaining)
		}
	}
}

// markDestroyed moves the connection to its terminal state and notifies and
// drops all listeners. It reports false if already destroyed.
func (c *Connection) markDestroyed() bool {
	c.mu.Lock()
	if c.state == StateDestroyed {
		c.mu.Unlock()
		return false
	}
	c.state = StateDestroyed
	targets := c.snapshot()
	c.listeners = make(map[ListenerID]Listener)
	c.mu.Unlock()

	for _, l := range targets {
		if l.OnDestroyed != nil {
			l.OnDestroyed(c)
		}
	}
	return true
}

// snapshot must be called with c.mu held.
func (c *Connection) snapshot() []Listener {
	ids := make([]ListenerID, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.listeners[id])
	}
	return out
}
