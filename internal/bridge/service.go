package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/registry"
	"github.com/acme/telephony-bridge/internal/telephony"
	"github.com/acme/telephony-bridge/pkg/logger"
)

const publishTimeout = 5 * time.Second

// EventSink receives lifecycle events. Publishing failures are logged and
// never affect the origination outcome.
type EventSink interface {
	Publish(ctx context.Context, ev domain.LifecycleEvent) error
}

// Service originates calls on a network stack and tracks the resulting
// connections until the stack destroys them.
type Service struct {
	phone       telephony.Phone
	family      Family
	registry    *registry.Registry
	events      EventSink
	logger      *logger.Logger
	tracer      trace.Tracer
	dialTimeout time.Duration
}

// NewService builds the bridge service. phone may be nil, in which case every
// origination fails with UNSPECIFIED_ERROR. events and lg may be nil.
func NewService(
	phone telephony.Phone,
	family Family,
	reg *registry.Registry,
	events EventSink,
	lg *logger.Logger,
	dialTimeout time.Duration,
) *Service {
	if lg == nil {
		lg = logger.NewNop()
	}
	return &Service{
		phone:       phone,
		family:      family,
		registry:    reg,
		events:      events,
		logger:      lg.Named("bridge"),
		tracer:      otel.Tracer("telephony.bridge"),
		dialTimeout: dialTimeout,
	}
}

// Family returns the network family this service originates on.
func (s *Service) Family() Family { return s.family }

// Phone returns the default network stack; it may be nil.
func (s *Service) Phone() telephony.Phone { return s.phone }

// Registry returns the connection registry.
func (s *Service) Registry() *registry.Registry { return s.registry }

// IsConnectionKnown reports whether nc is currently wrapped by this bridge.
func (s *Service) IsConnectionKnown(nc telephony.Connection) bool {
	return s.registry.Contains(nc)
}

// FindSubscriptions answers a discovery request: a subscription when the
// family can call handle, nil otherwise. Both are successful replies.
func (s *Service) FindSubscriptions(ctx context.Context, handle *domain.Handle, resp Response[*domain.Handle, *domain.Subscription]) {
	_, span := s.tracer.Start(ctx, "bridge.find_subscriptions", trace.WithAttributes(
		attribute.String("handle", handle.String()),
		attribute.String("network.family", s.family.Name()),
	))
	defer span.End()

	reply := newDispatcher(s.logger, resp)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("find subscriptions panicked", zap.Any("panic", r))
			span.SetStatus(codes.Error, "panic")
			reply.respondWithError(handle, domain.CauseUnspecifiedError, fmt.Sprintf("onFindSubscriptions error: %v", r))
		}
	}()

	var sub *domain.Subscription
	if s.family.CanCall(handle) {
		sub = &domain.Subscription{ID: uuid.New(), Family: s.family.Name()}
	}
	span.SetAttributes(attribute.Bool("callable", sub != nil))
	reply.respondWithResult(handle, sub)
}

// StartCall originates req on the service's default phone.
func (s *Service) StartCall(ctx context.Context, req *domain.CallRequest, resp Response[*domain.CallRequest, *Connection]) {
	s.StartCallWithPhone(ctx, s.phone, req, resp)
}

// StartCallWithPhone validates req, checks service state, dials, and wraps
// the network connection. resp receives exactly one reply. On success the
// network connection stays registered until the stack destroys it.
func (s *Service) StartCallWithPhone(ctx context.Context, phone telephony.Phone, req *domain.CallRequest, resp Response[*domain.CallRequest, *Connection]) {
	ctx, span := s.tracer.Start(ctx, "bridge.start_call", trace.WithAttributes(
		attribute.String("network.family", s.family.Name()),
	))
	defer span.End()

	lg := s.logger
	if req != nil {
		lg = lg.WithRequest(req.ID)
		span.SetAttributes(attribute.String("request.id", req.ID.String()))
	}
	lg.Debug("start call", zap.Stringer("request", req))

	var (
		nc      telephony.Connection
		bc      *Connection
		watched bool
	)

	reply := newDispatcher(lg, resp)
	fail := func(cause domain.DisconnectCause, detail string) {
		span.SetStatus(codes.Error, cause.String())
		span.SetAttributes(attribute.String("disconnect.cause", cause.String()))
		if !reply.respondWithError(req, cause, detail) {
			return
		}
		connID := uuid.Nil
		if nc != nil {
			connID = nc.ID()
		}
		s.publish(lg, failedEvent(s.family.Name(), req, connID, cause, detail))
	}
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		lg.Error("start call panicked", zap.Any("panic", r))
		switch {
		case nc != nil && bc == nil:
			s.hangup(lg, nc)
		case bc != nil && !watched:
			// Nothing will observe destruction, so do not leave it registered.
			s.registry.Unregister(nc)
			s.hangup(lg, nc)
		}
		if !reply.done() {
			fail(domain.CauseUnspecifiedError, fmt.Sprint(r))
		}
	}()

	if phone == nil {
		fail(domain.CauseUnspecifiedError, "Phone is null")
		return
	}
	if req == nil || req.Handle == nil {
		fail(domain.CauseNoNumberSupplied, "Handle is null")
		return
	}

	number := req.Handle.Address()
	if number == "" {
		fail(domain.CauseInvalidNumber, "Unable to parse number")
		return
	}

	state := phone.ServiceState()
	if ok, cause, detail := CheckServiceState(state); !ok {
		lg.Debug("service state denies origination", zap.Stringer("service_state", state))
		fail(cause, detail)
		return
	}

	dialCtx := ctx
	if s.dialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.dialTimeout)
		defer cancel()
	}

	nc, err := phone.Dial(dialCtx, number)
	if err != nil {
		lg.Error("dial failed", zap.Error(err))
		span.RecordError(err)
		fail(domain.CauseUnspecifiedError, err.Error())
		return
	}
	if nc == nil {
		lg.Error("dial returned no connection")
		fail(domain.CauseUnspecifiedError, "dial failed")
		return
	}
	span.SetAttributes(attribute.String("connection.id", nc.ID().String()))

	bc, err = s.family.Wrap(req, nc)
	if err == nil && bc == nil {
		err = fmt.Errorf("%s: wrap returned no connection", s.family.Name())
	}
	if err != nil {
		lg.Error("create connection failed", zap.Error(err), zap.Stringer("connection_id", nc.ID()))
		span.RecordError(err)
		s.hangup(lg, nc)
		fail(domain.CauseUnspecifiedError, err.Error())
		return
	}

	s.registry.Register(nc)
	reply.respondWithResult(req, bc)
	s.publish(lg, domain.LifecycleEvent{
		Type:         domain.LifecycleOriginated,
		RequestID:    req.ID,
		ConnectionID: nc.ID(),
		Family:       s.family.Name(),
		Handle:       req.Handle.String(),
	})

	s.watch(lg, bc, nc)
	watched = true
}

// RejectCall answers req with a failure without dialing, for callers that
// turn a request away before origination. The failure is published like any
// other so it reaches the attempt history.
func (s *Service) RejectCall(req *domain.CallRequest, cause domain.DisconnectCause, detail string, resp Response[*domain.CallRequest, *Connection]) {
	lg := s.logger
	if req != nil {
		lg = lg.WithRequest(req.ID)
	}
	lg.Debug("call rejected", zap.Stringer("cause", cause), zap.String("detail", detail))
	if newDispatcher(lg, resp).respondWithError(req, cause, detail) {
		s.publish(lg, failedEvent(s.family.Name(), req, uuid.Nil, cause, detail))
	}
}

// watch subscribes the post-dial and destroy handlers on nc. The destroy
// handler removes both subscriptions before unregistering nc.
func (s *Service) watch(lg *logger.Logger, bc *Connection, nc telephony.Connection) {
	postDial := nc.Subscribe(telephony.EventPostDialWait, func(ev telephony.Event) {
		remaining := ev.RemainingPostDial
		if remaining == "" {
			remaining = nc.RemainingPostDialString()
		}
		s.family.OnPostDialWait(bc, remaining)
		s.publish(lg, domain.LifecycleEvent{
			Type:         domain.LifecyclePostDialWait,
			RequestID:    bc.Request().ID,
			ConnectionID: nc.ID(),
			Family:       s.family.Name(),
			Handle:       bc.Request().Handle.String(),
			PostDialTail: remaining,
		})
	})

	nc.Subscribe(telephony.EventDestroyed, func(ev telephony.Event) {
		nc.Unsubscribe(ev.Subscription)
		nc.Unsubscribe(postDial)
		s.registry.Unregister(nc)
		if !bc.markDestroyed() {
			return
		}
		lg.Debug("connection destroyed", zap.Stringer("connection_id", nc.ID()))
		s.publish(lg, domain.LifecycleEvent{
			Type:         domain.LifecycleDestroyed,
			RequestID:    bc.Request().ID,
			ConnectionID: nc.ID(),
			Family:       s.family.Name(),
			Handle:       bc.Request().Handle.String(),
		})
	})
}

func (s *Service) hangup(lg *logger.Logger, nc telephony.Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := nc.Hangup(ctx); err != nil {
		lg.Warn("hangup of unwrapped connection failed", zap.Error(err), zap.Stringer("connection_id", nc.ID()))
	}
}

func (s *Service) publish(lg *logger.Logger, ev domain.LifecycleEvent) {
	if s.events == nil {
		return
	}
	ev.ID = uuid.New()
	ev.OccurredAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, ev); err != nil {
		lg.Warn("publish lifecycle event", zap.Error(err), zap.String("type", string(ev.Type)))
	}
}

func failedEvent(family string, req *domain.CallRequest, connID uuid.UUID, cause domain.DisconnectCause, detail string) domain.LifecycleEvent {
	ev := domain.LifecycleEvent{
		Type:         domain.LifecycleFailed,
		ConnectionID: connID,
		Family:       family,
		Cause:        &cause,
		Detail:       detail,
	}
	if req != nil {
		ev.RequestID = req.ID
		ev.Handle = req.Handle.String()
	}
	return ev
}
