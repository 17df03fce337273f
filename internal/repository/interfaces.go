package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/acme/telephony-bridge/internal/domain"
	apperrors "github.com/acme/telephony-bridge/pkg/errors"
)

// ErrNotFound indicates the entity was not located.
var ErrNotFound = apperrors.ErrNotFound

// AttemptRepository persists one row per origination request.
type AttemptRepository interface {
	// Record stores the outcome of an origination. Recording the same request
	// twice keeps the first row.
	Record(ctx context.Context, attempt *domain.OriginationAttempt) error
	// MarkEnded stamps the end time of a connected attempt.
	MarkEnded(ctx context.Context, requestID uuid.UUID, endedAt time.Time) error
	Get(ctx context.Context, requestID uuid.UUID) (*domain.OriginationAttempt, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.OriginationAttempt, error)
}

// ConnectionEventStore keeps the event timeline of each network connection.
type ConnectionEventStore interface {
	Append(ctx context.Context, ev domain.LifecycleEvent) error
	ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int, pagingState []byte) ([]domain.LifecycleEvent, []byte, error)
}
