package bridge

import (
	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/telephony"
)

// Family is implemented once per network family (circuit-switched,
// packet-switched). The Service only ever holds this interface.
type Family interface {
	// Name identifies the family in logs, events and subscriptions.
	Name() string
	// CanCall is a cheap, side-effect free eligibility check.
	CanCall(handle *domain.Handle) bool
	// Wrap builds the bridged connection for a dialed network connection.
	// It must not touch the registry.
	Wrap(req *domain.CallRequest, nc telephony.Connection) (*Connection, error)
	// OnPostDialWait handles a post-dial wait forwarded from the network connection.
	OnPostDialWait(c *Connection, remaining string)
}
