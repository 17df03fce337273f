package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/telephony-bridge/internal/app"
	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/queue"
	"github.com/acme/telephony-bridge/internal/repository"
	"github.com/acme/telephony-bridge/pkg/logger"
)

// MessageReader is the subset of *kafka.Reader the worker consumes from.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Worker consumes lifecycle events and persists them: outcomes to the
// attempts table and per-connection timelines to the event store.
type Worker struct {
	attempts repository.AttemptRepository
	events   repository.ConnectionEventStore
	reader   func() MessageReader
	logger   *logger.Logger
	tracer   trace.Tracer
}

// New creates a recorder in its own consumer group on the event topic.
func New(container *app.Container) *Worker {
	cfg := container.Config.Kafka
	repos := container.Repositories()
	return NewWorker(
		repos.Attempts,
		repos.Events,
		func() MessageReader {
			return container.Kafka.NewReader(cfg.EventTopic, cfg.ConsumerGroupID+"-lifecycle")
		},
		container.Logger,
	)
}

// NewWorker builds a worker from explicit collaborators.
func NewWorker(attempts repository.AttemptRepository, events repository.ConnectionEventStore, reader func() MessageReader, lg *logger.Logger) *Worker {
	if lg == nil {
		lg = logger.NewNop()
	}
	return &Worker{
		attempts: attempts,
		events:   events,
		reader:   reader,
		logger:   lg.Named("lifecycle_worker"),
		tracer:   otel.Tracer("telephony.lifecycleworker"),
	}
}

// Run processes lifecycle events until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	reader := w.reader()
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("fetch", zap.Error(err))
			continue
		}

		var wire queue.LifecycleMessage
		if err := json.Unmarshal(msg.Value, &wire); err != nil {
			w.logger.Error("unmarshal", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}
		ev, err := wire.Event()
		if err != nil {
			w.logger.Error("decode event", zap.Error(err), zap.Stringer("event_id", wire.EventID))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		if err := w.apply(ctx, ev); err != nil {
			w.logger.Error("apply event", zap.Error(err), zap.String("type", string(ev.Type)))
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			w.logger.Error("commit", zap.Error(err))
		}
	}
}

// apply persists ev. Both stores are attempted; the first error is returned.
func (w *Worker) apply(ctx context.Context, ev domain.LifecycleEvent) error {
	sctx, span := w.tracer.Start(ctx, "bridge.lifecycle", trace.WithAttributes(
		attribute.String("event.type", string(ev.Type)),
		attribute.String("request.id", ev.RequestID.String()),
		attribute.String("connection.id", ev.ConnectionID.String()),
	))
	defer span.End()

	var errs []error
	if err := w.events.Append(sctx, ev); err != nil {
		errs = append(errs, err)
	}
	if err := w.recordAttempt(sctx, ev); err != nil {
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (w *Worker) recordAttempt(ctx context.Context, ev domain.LifecycleEvent) error {
	switch ev.Type {
	case domain.LifecycleOriginated, domain.LifecycleFailed:
		return w.attempts.Record(ctx, attemptFromEvent(ev))
	case domain.LifecycleDestroyed:
		err := w.attempts.MarkEnded(ctx, ev.RequestID, ev.OccurredAt)
		if errors.Is(err, repository.ErrNotFound) {
			w.logger.Warn("destroyed event for unknown attempt", zap.Stringer("request_id", ev.RequestID))
			return nil
		}
		return err
	case domain.LifecyclePostDialWait:
		return nil
	default:
		return fmt.Errorf("unknown lifecycle event type %q", ev.Type)
	}
}

func attemptFromEvent(ev domain.LifecycleEvent) *domain.OriginationAttempt {
	a := &domain.OriginationAttempt{
		RequestID: ev.RequestID,
		Family:    ev.Family,
		Handle:    ev.Handle,
		Outcome:   domain.OutcomeConnected,
		Cause:     ev.Cause,
		Detail:    ev.Detail,
		CreatedAt: ev.OccurredAt,
	}
	if ev.Type == domain.LifecycleFailed {
		a.Outcome = domain.OutcomeFailed
	}
	if ev.ConnectionID != uuid.Nil {
		id := ev.ConnectionID
		a.ConnectionID = &id
	}
	return a
}
