// Package packet implements the bridge family for SIP addresses.
package packet

import (
	"fmt"
	"strings"

	"github.com/emiago/sipgo/sip"
	"go.uber.org/zap"

	"github.com/acme/telephony-bridge/internal/bridge"
	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/telephony"
	apperrors "github.com/acme/telephony-bridge/pkg/errors"
	"github.com/acme/telephony-bridge/pkg/logger"
)

// Name is the family name reported in subscriptions and events.
const Name = "packet"

// Family accepts sip: and sips: handles that parse as SIP URIs with a host.
type Family struct {
	domain string
	logger *logger.Logger
}

var _ bridge.Family = (*Family)(nil)

// New returns a packet family. sipDomain, when set, completes handles that
// carry only a user part.
func New(sipDomain string, lg *logger.Logger) *Family {
	if lg == nil {
		lg = logger.NewNop()
	}
	return &Family{domain: sipDomain, logger: lg.Named(Name)}
}

func (f *Family) Name() string { return Name }

func (f *Family) CanCall(h *domain.Handle) bool {
	_, err := f.parse(h)
	return err == nil
}

// Wrap builds the bridged connection with the parsed SIP URI as remote address.
func (f *Family) Wrap(req *domain.CallRequest, nc telephony.Connection) (*bridge.Connection, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: packet: nil request", apperrors.ErrValidation)
	}
	uri, err := f.parse(req.Handle)
	if err != nil {
		return nil, err
	}
	return bridge.NewConnection(Name, req, nc, uri.String()), nil
}

func (f *Family) OnPostDialWait(c *bridge.Connection, remaining string) {
	f.logger.Debug("post dial wait",
		zap.Stringer("connection_id", c.ID()),
		zap.String("remaining", remaining),
	)
	c.SetPostDialWait(remaining)
}

func (f *Family) parse(h *domain.Handle) (*sip.Uri, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: packet: nil handle", apperrors.ErrValidation)
	}
	if h.Scheme != domain.SchemeSIP && h.Scheme != domain.SchemeSIPS {
		return nil, fmt.Errorf("%w: packet: unsupported scheme %q", apperrors.ErrValidation, h.Scheme)
	}

	addr := h.Address()
	if addr == "" {
		return nil, fmt.Errorf("%w: packet: empty address", apperrors.ErrValidation)
	}
	if !strings.Contains(addr, "@") && f.domain != "" {
		addr += "@" + f.domain
	}

	var uri sip.Uri
	if err := sip.ParseUri(h.Scheme+":"+addr, &uri); err != nil {
		return nil, fmt.Errorf("%w: packet: invalid SIP URI: %v", apperrors.ErrValidation, err)
	}
	if uri.Host == "" {
		return nil, fmt.Errorf("%w: packet: SIP URI has no host", apperrors.ErrValidation)
	}
	return &uri, nil
}
