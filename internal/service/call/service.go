package call

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/queue"
	"github.com/acme/telephony-bridge/internal/repository"
	"github.com/acme/telephony-bridge/internal/service/common"
	apperrors "github.com/acme/telephony-bridge/pkg/errors"
)

const (
	defaultTimelineLimit = 50
	maxTimelineLimit     = 500
	defaultRecentLimit   = 20
)

// Enqueuer pushes requests to the origination worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg queue.RequestMessage) error
}

// Service exposes origination history and asynchronous origination. Any
// collaborator may be nil; the matching operations then report
// ErrUnavailable.
type Service struct {
	requests Enqueuer
	attempts repository.AttemptRepository
	events   repository.ConnectionEventStore
}

// NewService builds the call service.
func NewService(requests Enqueuer, attempts repository.AttemptRepository, events repository.ConnectionEventStore) *Service {
	return &Service{requests: requests, attempts: attempts, events: events}
}

// Enqueue hands req to the origination worker. raw is the handle as the
// caller supplied it and may be empty.
func (s *Service) Enqueue(ctx context.Context, req *domain.CallRequest, raw string) error {
	if s.requests == nil {
		return fmt.Errorf("%w: asynchronous origination is not configured", apperrors.ErrUnavailable)
	}
	msg := queue.RequestMessage{
		RequestID:  req.ID,
		Operation:  queue.OperationOriginate,
		Handle:     raw,
		Extras:     req.Extras,
		EnqueuedAt: req.CreatedAt,
	}
	if err := s.requests.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrUnavailable, err)
	}
	return nil
}

// Attempt returns the recorded outcome of a request.
func (s *Service) Attempt(ctx context.Context, requestID uuid.UUID) (*domain.OriginationAttempt, error) {
	if s.attempts == nil {
		return nil, fmt.Errorf("%w: attempt history is not configured", apperrors.ErrUnavailable)
	}
	return s.attempts.Get(ctx, requestID)
}

// Recent lists the newest attempts first.
func (s *Service) Recent(ctx context.Context, limit int) ([]*domain.OriginationAttempt, error) {
	if s.attempts == nil {
		return nil, fmt.Errorf("%w: attempt history is not configured", apperrors.ErrUnavailable)
	}
	if limit <= 0 || limit > maxTimelineLimit {
		limit = defaultRecentLimit
	}
	return s.attempts.ListRecent(ctx, limit)
}

// Timeline is one page of a connection's lifecycle events.
type Timeline struct {
	Events    []domain.LifecycleEvent
	NextToken string
}

// Timeline pages through the events of a connection. token is the
// NextToken of the previous page, or empty for the first.
func (s *Service) Timeline(ctx context.Context, connectionID uuid.UUID, limit int, token string) (*Timeline, error) {
	if s.events == nil {
		return nil, fmt.Errorf("%w: event history is not configured", apperrors.ErrUnavailable)
	}
	if limit <= 0 {
		limit = defaultTimelineLimit
	}
	if limit > maxTimelineLimit {
		limit = maxTimelineLimit
	}
	state, err := common.DecodePageToken(token)
	if err != nil {
		return nil, err
	}
	events, next, err := s.events.ListByConnection(ctx, connectionID, limit, state)
	if err != nil {
		return nil, fmt.Errorf("call service: list events: %w", err)
	}
	return &Timeline{Events: events, NextToken: common.EncodePageToken(next)}, nil
}
