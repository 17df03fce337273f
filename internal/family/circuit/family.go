// Package circuit implements the bridge family for telephone numbers carried on
// a circuit-switched network.
package circuit

import (
	"fmt"
	"strings"

	"github.com/ttacon/libphonenumber"
	"go.uber.org/zap"

	"github.com/acme/telephony-bridge/internal/bridge"
	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/telephony"
	apperrors "github.com/acme/telephony-bridge/pkg/errors"
	"github.com/acme/telephony-bridge/pkg/logger"
)

// Name is the family name reported in subscriptions and events.
const Name = "circuit"

// Family accepts tel: handles that libphonenumber considers possible numbers.
type Family struct {
	region string
	logger *logger.Logger
}

var _ bridge.Family = (*Family)(nil)

// New returns a circuit family. region is the ISO 3166 code used for numbers
// written without a country code.
func New(region string, lg *logger.Logger) *Family {
	if lg == nil {
		lg = logger.NewNop()
	}
	return &Family{region: strings.ToUpper(region), logger: lg.Named(Name)}
}

func (f *Family) Name() string { return Name }

// CanCall reports whether h is a tel: handle holding a possible phone number.
func (f *Family) CanCall(h *domain.Handle) bool {
	if h == nil || h.Scheme != domain.SchemeTel {
		return false
	}
	num, err := f.parse(h.Address())
	if err != nil {
		return false
	}
	return libphonenumber.IsPossibleNumber(num)
}

// Wrap builds the bridged connection. The remote address is E.164 when the
// number parses and the dialed digits otherwise.
func (f *Family) Wrap(req *domain.CallRequest, nc telephony.Connection) (*bridge.Connection, error) {
	if req == nil || req.Handle == nil {
		return nil, fmt.Errorf("%w: circuit: request has no handle", apperrors.ErrValidation)
	}
	if req.Handle.Scheme != domain.SchemeTel {
		return nil, fmt.Errorf("%w: circuit: unsupported scheme %q", apperrors.ErrValidation, req.Handle.Scheme)
	}

	remote := nc.Address()
	if num, err := f.parse(req.Handle.Address()); err == nil {
		remote = libphonenumber.Format(num, libphonenumber.E164)
	}
	return bridge.NewConnection(Name, req, nc, remote), nil
}

// OnPostDialWait records the remaining tail on the connection. Sending the
// tail is left to the caller.
func (f *Family) OnPostDialWait(c *bridge.Connection, remaining string) {
	f.logger.Debug("post dial wait",
		zap.Stringer("connection_id", c.ID()),
		zap.String("remaining", remaining),
	)
	c.SetPostDialWait(remaining)
}

func (f *Family) parse(address string) (*libphonenumber.PhoneNumber, error) {
	number := dialablePart(address)
	if number == "" {
		return nil, fmt.Errorf("%w: empty number", apperrors.ErrValidation)
	}
	return libphonenumber.Parse(number, f.region)
}

// dialablePart drops the post-dial tail introduced by ';' or ','.
func dialablePart(address string) string {
	if i := strings.IndexAny(address, ";,"); i >= 0 {
		address = address[:i]
	}
	return strings.TrimSpace(address)
}
