package bridge

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/acme/telephony-bridge/internal/domain"
	apperrors "github.com/acme/telephony-bridge/pkg/errors"
	"github.com/acme/telephony-bridge/pkg/logger"
)

// Response receives the single outcome of an asynchronous request.
// Exactly one of OnResult or OnError is called, exactly once.
type Response[Req, Res any] interface {
	OnResult(req Req, result Res)
	OnError(req Req, cause domain.DisconnectCause, detail string)
}

// OriginationError is a failed outcome as a Go error.
type OriginationError struct {
	Cause  domain.DisconnectCause
	Detail string
}

func (e *OriginationError) Error() string {
	if e.Detail == "" {
		return e.Cause.String()
	}
	return e.Cause.String() + ": " + e.Detail
}

// ResponseFuncs adapts a pair of closures to Response. Nil funcs are skipped.
type ResponseFuncs[Req, Res any] struct {
	Result func(req Req, result Res)
	Error  func(req Req, cause domain.DisconnectCause, detail string)
}

func (f ResponseFuncs[Req, Res]) OnResult(req Req, result Res) {
	if f.Result != nil {
		f.Result(req, result)
	}
}

func (f ResponseFuncs[Req, Res]) OnError(req Req, cause domain.DisconnectCause, detail string) {
	if f.Error != nil {
		f.Error(req, cause, detail)
	}
}

// Outcome is what an OutcomeResponse delivers.
type Outcome[Res any] struct {
	Result Res
	Err    *OriginationError
}

// OutcomeResponse turns the callback protocol into a value a synchronous
// caller can wait on.
type OutcomeResponse[Req, Res any] struct {
	ch chan Outcome[Res]
}

// NewOutcomeResponse creates a response that buffers the first outcome.
func NewOutcomeResponse[Req, Res any]() *OutcomeResponse[Req, Res] {
	return &OutcomeResponse[Req, Res]{ch: make(chan Outcome[Res], 1)}
}

func (r *OutcomeResponse[Req, Res]) OnResult(_ Req, result Res) {
	r.deliver(Outcome[Res]{Result: result})
}

func (r *OutcomeResponse[Req, Res]) OnError(_ Req, cause domain.DisconnectCause, detail string) {
	r.deliver(Outcome[Res]{Err: &OriginationError{Cause: cause, Detail: detail}})
}

func (r *OutcomeResponse[Req, Res]) deliver(o Outcome[Res]) {
	select {
	case r.ch <- o:
	default:
	}
}

// Wait blocks until the outcome arrives or ctx is done. A failed outcome is
// returned as *OriginationError.
func (r *OutcomeResponse[Req, Res]) Wait(ctx context.Context) (Res, error) {
	var zero Res
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case o := <-r.ch:
		if o.Err != nil {
			return zero, o.Err
		}
		return o.Result, nil
	}
}

// dispatcher enforces the exactly-once rule on top of a caller's Response and
// logs every reply.
type dispatcher[Req fmt.Stringer, Res any] struct {
	inner   Response[Req, Res]
	logger  *logger.Logger
	replied atomic.Bool
}

func newDispatcher[Req fmt.Stringer, Res any](lg *logger.Logger, inner Response[Req, Res]) *dispatcher[Req, Res] {
	return &dispatcher[Req, Res]{inner: inner, logger: lg}
}

func (d *dispatcher[Req, Res]) respondWithResult(req Req, result Res) bool {
	if !d.claim(req) {
		return false
	}
	d.logger.Debug("respond with result", zap.Stringer("request", req), zap.Any("result", result))
	if d.inner != nil {
		d.inner.OnResult(req, result)
	}
	return true
}

func (d *dispatcher[Req, Res]) respondWithError(req Req, cause domain.DisconnectCause, detail string) bool {
	if !d.claim(req) {
		return false
	}
	d.logger.Debug("respond with error",
		zap.Stringer("request", req),
		zap.Stringer("cause", cause),
		zap.String("detail", detail),
	)
	if d.inner != nil {
		d.inner.OnError(req, cause, detail)
	}
	return true
}

func (d *dispatcher[Req, Res]) done() bool {
	return d.replied.Load()
}

func (d *dispatcher[Req, Res]) claim(req Req) bool {
	if d.replied.CompareAndSwap(false, true) {
		return true
	}
	d.logger.Error("second reply dropped",
		zap.Stringer("request", req),
		zap.Error(apperrors.ErrProtocol),
	)
	return false
}
