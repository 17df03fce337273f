package scheduler

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/telephony-bridge/internal/app"
	"github.com/acme/telephony-bridge/internal/telephony"
	"github.com/acme/telephony-bridge/pkg/logger"
)

const defaultInterval = time.Minute

// Mirror is the shared copy of this node's connections.
type Mirror interface {
	Reconcile(ctx context.Context, live []telephony.Connection) (added, removed int, err error)
}

// Source reports the connections this node is tracking.
type Source interface {
	Snapshot() []telephony.Connection
}

// Reconciler periodically repairs the connection mirror. Mirror writes are
// best effort, so entries can drift from the registry while redis is
// unreachable.
type Reconciler struct {
	source   Source
	mirror   Mirror
	interval time.Duration
	logger   *logger.Logger
	tracer   trace.Tracer
}

// New constructs a reconciler for the container's registry and mirror.
func New(container *app.Container) *Reconciler {
	tel := container.Telephony()
	return NewReconciler(tel.Registry, tel.Mirror, container.Config.Redis.ReconcileInterval, container.Logger)
}

// NewReconciler builds a reconciler from explicit collaborators.
func NewReconciler(source Source, mirror Mirror, interval time.Duration, lg *logger.Logger) *Reconciler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if lg == nil {
		lg = logger.NewNop()
	}
	return &Reconciler{
		source:   source,
		mirror:   mirror,
		interval: interval,
		logger:   lg.Named("mirror_reconciler"),
		tracer:   otel.Tracer("telephony.scheduler"),
	}
}

// Run executes the reconcile loop until cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.tick(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("mirror reconcile failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) error {
	sctx, span := r.tracer.Start(ctx, "scheduler.reconcile_mirror")
	defer span.End()

	live := r.source.Snapshot()
	span.SetAttributes(attribute.Int("connections.live", len(live)))

	added, removed, err := r.mirror.Reconcile(sctx, live)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.Int("mirror.added", added), attribute.Int("mirror.removed", removed))
	if added > 0 || removed > 0 {
		r.logger.Info("mirror reconciled", zap.Int("added", added), zap.Int("removed", removed))
	}
	return nil
}
