package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/telephony"
)

type errReply struct {
	cause  domain.DisconnectCause
	detail string
}

type recorder[Req, Res any] struct {
	mu      sync.Mutex
	results []Res
	errs    []errReply
}

func (r *recorder[Req, Res]) OnResult(_ Req, result Res) {
	r.mu.Lock()
	r.results = append(r.results, result)
	r.mu.Unlock()
}

func (r *recorder[Req, Res]) OnError(_ Req, cause domain.DisconnectCause, detail string) {
	r.mu.Lock()
	r.errs = append(r.errs, errReply{cause: cause, detail: detail})
	r.mu.Unlock()
}

func (r *recorder[Req, Res]) replies() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results) + len(r.errs)
}

type fakeFamily struct {
	callable     bool
	canCallPanic bool
	wrapErr      error
	wrapPanic    bool
	wrapNil      bool
	onWrap       func(nc telephony.Connection)

	mu       sync.Mutex
	wrapped  []telephony.Connection
	postDial []string
}

func (f *fakeFamily) Name() string { return "fake" }

func (f *fakeFamily) CanCall(*domain.Handle) bool {
	if f.canCallPanic {
		panic("boom")
	}
	return f.callable
}

func (f *fakeFamily) Wrap(req *domain.CallRequest, nc telephony.Connection) (*Connection, error) {
	f.mu.Lock()
	f.wrapped = append(f.wrapped, nc)
	f.mu.Unlock()

	if f.onWrap != nil {
		f.onWrap(nc)
	}
	switch {
	case f.wrapPanic:
		panic("wrap exploded")
	case f.wrapErr != nil:
		return nil, f.wrapErr
	case f.wrapNil:
		return nil, nil
	}
	return NewConnection(f.Name(), req, nc, nc.Address()), nil
}

func (f *fakeFamily) OnPostDialWait(c *Connection, remaining string) {
	f.mu.Lock()
	f.postDial = append(f.postDial, remaining)
	f.mu.Unlock()
	c.SetPostDialWait(remaining)
}

func (f *fakeFamily) lastWrapped() telephony.Connection {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.wrapped) == 0 {
		return nil
	}
	return f.wrapped[len(f.wrapped)-1]
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
	err    error
}

func (s *recordingSink) Publish(_ context.Context, ev domain.LifecycleEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) types() []domain.LifecycleEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LifecycleEventType, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

var errSinkDown = errors.New("sink down")
