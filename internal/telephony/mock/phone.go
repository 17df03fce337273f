package mock

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/acme/telephony-bridge/internal/config"
	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/telephony"
	apperrors "github.com/acme/telephony-bridge/pkg/errors"
)

// postDialWaitChar separates the dialed number from the post-dial tail.
const postDialWaitChar = ";"

// DialOutcome scripts the result of a single Dial call.
type DialOutcome struct {
	// Err is returned as-is from Dial.
	Err error
	// NoConnection makes Dial return (nil, nil).
	NoConnection bool
}

// Phone simulates a network stack.
type Phone struct {
	mu          sync.Mutex
	state       domain.ServiceState
	successRate float64
	latency     time.Duration
	rng         *rand.Rand
	script      []DialOutcome
	dialed      []string
}

var _ telephony.Phone = (*Phone)(nil)

// NewPhone constructs a simulated phone from network configuration.
func NewPhone(cfg config.NetworkConfig) *Phone {
	state := domain.ServiceStateInService
	if cfg.InitialServiceState != "" {
		if parsed, err := domain.ParseServiceState(cfg.InitialServiceState); err == nil {
			state = parsed
		}
	}
	rate := cfg.SimulatedSuccessRate
	if rate <= 0 {
		rate = 1
	}
	return &Phone{
		state:       state,
		successRate: rate,
		latency:     cfg.SimulatedDialLatency,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewScriptedPhone returns an instant, always-successful phone in the given state.
// Use Script to queue failures.
func NewScriptedPhone(state domain.ServiceState) *Phone {
	return &Phone{
		state:       state,
		successRate: 1,
		rng:         rand.New(rand.NewSource(1)),
	}
}

// ServiceState returns the current registration state.
func (p *Phone) ServiceState() domain.ServiceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetServiceState changes the registration state.
func (p *Phone) SetServiceState(state domain.ServiceState) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

// SetLatency changes the simulated dial latency.
func (p *Phone) SetLatency(d time.Duration) {
	p.mu.Lock()
	p.latency = d
	p.mu.Unlock()
}

// Script queues outcomes consumed by subsequent Dial calls in order.
func (p *Phone) Script(outcomes ...DialOutcome) {
	p.mu.Lock()
	p.script = append(p.script, outcomes...)
	p.mu.Unlock()
}

// Dialed returns the addresses passed to Dial so far.
func (p *Phone) Dialed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.dialed))
	copy(out, p.dialed)
	return out
}

// Dial simulates a call attempt. A tail after ';' becomes the post-dial string.
func (p *Phone) Dial(ctx context.Context, address string) (telephony.Connection, error) {
	p.mu.Lock()
	p.dialed = append(p.dialed, address)
	var (
		outcome  DialOutcome
		scripted bool
	)
	if len(p.script) > 0 {
		outcome, p.script = p.script[0], p.script[1:]
		scripted = true
	}
	rejected := !scripted && p.rng.Float64() > p.successRate
	latency := p.latency
	p.mu.Unlock()

	if latency > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: dial interrupted: %v", apperrors.ErrCallState, ctx.Err())
		case <-time.After(latency):
		}
	}

	switch {
	case outcome.Err != nil:
		return nil, outcome.Err
	case outcome.NoConnection:
		return nil, nil
	case rejected:
		return nil, fmt.Errorf("%w: simulated dial rejection", apperrors.ErrCallState)
	}

	number, tail, _ := strings.Cut(address, postDialWaitChar)
	return NewConnection(number, tail), nil
}
