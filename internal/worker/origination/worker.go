package origination

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/telephony-bridge/internal/app"
	"github.com/acme/telephony-bridge/internal/bridge"
	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/queue"
	"github.com/acme/telephony-bridge/pkg/logger"
)

// MessageReader is the subset of *kafka.Reader the worker consumes from.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ReplyPublisher sends the reply to a request.
type ReplyPublisher interface {
	PublishReply(ctx context.Context, msg queue.ReplyMessage) error
}

// DialSlots caps concurrent originations across workers.
type DialSlots interface {
	Acquire(ctx context.Context, family string) (bool, error)
	Release(ctx context.Context, family string) error
}

const (
	slotPollInterval = 100 * time.Millisecond
	defaultSlotWait  = 10 * time.Second
)

// Worker consumes origination and discovery requests and runs them on the
// bridge, publishing exactly one reply per request.
type Worker struct {
	bridge   *bridge.Service
	replies  ReplyPublisher
	slots    DialSlots
	slotWait time.Duration
	reader   func() MessageReader
	logger   *logger.Logger
	tracer   trace.Tracer
}

// New creates a worker reading the configured request topic.
func New(container *app.Container) *Worker {
	cfg := container.Config.Kafka
	return NewWorker(
		container.Bridge(),
		container.Publishers().Replies,
		container.Services().DialSlots,
		func() MessageReader { return container.Kafka.NewReader(cfg.RequestTopic, cfg.ConsumerGroupID) },
		container.Logger,
	)
}

// NewWorker builds a worker from explicit collaborators. slots may be nil.
func NewWorker(svc *bridge.Service, replies ReplyPublisher, slots DialSlots, reader func() MessageReader, lg *logger.Logger) *Worker {
	if lg == nil {
		lg = logger.NewNop()
	}
	return &Worker{
		bridge:   svc,
		replies:  replies,
		slots:    slots,
		slotWait: defaultSlotWait,
		reader:   reader,
		logger:   lg.Named("origination_worker"),
		tracer:   otel.Tracer("telephony.originationworker"),
	}
}

// Run starts the worker loop and returns when ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	reader := w.reader()
	defer reader.Close()

	w.logger.Info("origination worker started")
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("fetch message", zap.Error(err))
			continue
		}

		if err := w.processMessage(ctx, m); err != nil {
			w.logger.Error("process message", zap.Error(err), zap.Int64("offset", m.Offset))
		}
		if err := reader.CommitMessages(ctx, m); err != nil {
			w.logger.Error("commit message", zap.Error(err))
		}
	}
}

func (w *Worker) processMessage(ctx context.Context, m kafka.Message) error {
	var req queue.RequestMessage
	if err := json.Unmarshal(m.Value, &req); err != nil {
		return fmt.Errorf("unmarshal request: %w", err)
	}

	sctx, span := w.tracer.Start(ctx, "bridge.request", trace.WithAttributes(
		attribute.String("request.id", req.RequestID.String()),
		attribute.String("operation", string(req.Operation)),
	))
	defer span.End()

	reply := w.handle(sctx, req)
	if !reply.Success {
		span.SetStatus(codes.Error, reply.Cause)
	}

	if err := w.replies.PublishReply(sctx, reply); err != nil {
		span.RecordError(err)
		return fmt.Errorf("publish reply: %w", err)
	}
	return nil
}

// handle runs req and converts its outcome to a reply. Handles that do not
// parse are passed on as-is so the bridge answers them like any other
// uncallable destination.
func (w *Worker) handle(ctx context.Context, req queue.RequestMessage) queue.ReplyMessage {
	reply := queue.ReplyMessage{RequestID: req.RequestID, Operation: req.Operation}
	fail := func(cause domain.DisconnectCause, detail string) {
		reply.Success = false
		reply.Cause = cause.String()
		reply.Detail = detail
	}
	handle := domain.LenientHandle(req.Handle)

	switch req.Operation {
	case queue.OperationOriginate:
		call := domain.NewCallRequest(handle, req.Extras)
		call.ID = req.RequestID
		resp := bridge.ResponseFuncs[*domain.CallRequest, *bridge.Connection]{
			Result: func(_ *domain.CallRequest, c *bridge.Connection) {
				id := c.ID()
				reply.Success = true
				reply.ConnectionID = &id
				reply.RemoteAddress = c.RemoteAddress()
			},
			Error: func(_ *domain.CallRequest, cause domain.DisconnectCause, detail string) {
				fail(cause, detail)
			},
		}
		release, ok := w.waitForSlot(ctx)
		if !ok {
			w.bridge.RejectCall(call, domain.CauseUnspecifiedError, "no dial slot available", resp)
			break
		}
		defer release()
		w.bridge.StartCall(ctx, call, resp)
	case queue.OperationFindSubscriptions:
		w.bridge.FindSubscriptions(ctx, handle, bridge.ResponseFuncs[*domain.Handle, *domain.Subscription]{
			Result: func(_ *domain.Handle, sub *domain.Subscription) {
				reply.Success = true
				reply.Subscription = sub
			},
			Error: func(_ *domain.Handle, cause domain.DisconnectCause, detail string) {
				fail(cause, detail)
			},
		})
	default:
		fail(domain.CauseUnspecifiedError, fmt.Sprintf("unknown operation %q", req.Operation))
	}

	reply.RepliedAt = time.Now().UTC()
	return reply
}

// waitForSlot blocks until a dial slot is free or the wait budget is spent.
// A limiter error lets the origination through rather than stalling the
// topic.
func (w *Worker) waitForSlot(ctx context.Context) (func(), bool) {
	noop := func() {}
	if w.slots == nil {
		return noop, true
	}
	family := w.bridge.Family().Name()

	waitCtx, cancel := context.WithTimeout(ctx, w.slotWait)
	defer cancel()
	ticker := time.NewTicker(slotPollInterval)
	defer ticker.Stop()

	for {
		ok, err := w.slots.Acquire(waitCtx, family)
		if err != nil && waitCtx.Err() != nil {
			w.logger.Warn("no dial slot available", zap.String("family", family))
			return noop, false
		}
		if err != nil {
			w.logger.Warn("dial slot acquire failed", zap.Error(err), zap.String("family", family))
			return noop, true
		}
		if ok {
			return func() {
				rctx, rcancel := context.WithTimeout(context.Background(), time.Second)
				defer rcancel()
				if err := w.slots.Release(rctx, family); err != nil {
					w.logger.Warn("dial slot release failed", zap.Error(err), zap.String("family", family))
				}
			}, true
		}

		select {
		case <-waitCtx.Done():
			w.logger.Warn("no dial slot available", zap.String("family", family))
			return noop, false
		case <-ticker.C:
		}
	}
}
