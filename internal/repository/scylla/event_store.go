package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/repository"
)

const schema = `CREATE TABLE IF NOT EXISTS connection_events (
	connection_id text,
	occurred_at timestamp,
	event_id text,
	type text,
	request_id text,
	family text,
	handle text,
	cause text,
	detail text,
	post_dial_tail text,
	PRIMARY KEY ((connection_id), occurred_at, event_id)
) WITH CLUSTERING ORDER BY (occurred_at ASC, event_id ASC)`

// EventStore persists the lifecycle timeline of network connections in Scylla.
type EventStore struct {
	session *gocql.Session
}

var _ repository.ConnectionEventStore = (*EventStore)(nil)

// NewEventStore creates a new event store.
func NewEventStore(session *gocql.Session) *EventStore {
	return &EventStore{session: session}
}

// EnsureSchema creates the events table in the session keyspace.
func (s *EventStore) EnsureSchema(ctx context.Context) error {
	if err := s.session.Query(schema).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("event store: ensure schema: %w", err)
	}
	return nil
}

// Append writes ev to its connection's timeline. Events without a connection
// are skipped.
func (s *EventStore) Append(ctx context.Context, ev domain.LifecycleEvent) error {
	if ev.ConnectionID == uuid.Nil {
		return nil
	}
	var cause *string
	if ev.Cause != nil {
		name := ev.Cause.String()
		cause = &name
	}

	if err := s.session.Query(`INSERT INTO connection_events (connection_id, occurred_at, event_id, type, request_id, family, handle, cause, detail, post_dial_tail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ConnectionID.String(), ev.OccurredAt, ev.ID.String(), string(ev.Type), ev.RequestID.String(),
		ev.Family, ev.Handle, cause, ev.Detail, ev.PostDialTail,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("event store: insert connection_events: %w", err)
	}
	return nil
}

// ListByConnection returns a page of a connection's events in time order.
func (s *EventStore) ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int, pagingState []byte) ([]domain.LifecycleEvent, []byte, error) {
	if limit <= 0 {
		limit = 100
	}

	query := s.session.Query(`SELECT occurred_at, event_id, type, request_id, family, handle, cause, detail, post_dial_tail
		FROM connection_events WHERE connection_id = ?`, connectionID.String()).WithContext(ctx)
	query = query.PageSize(limit)
	if len(pagingState) > 0 {
		query = query.PageState(pagingState)
	}

	iter := query.Iter()
	events := make([]domain.LifecycleEvent, 0, limit)

	var (
		occurred     time.Time
		eventIDStr   string
		typ          string
		requestIDStr string
		family       string
		handle       string
		cause        *string
		detail       string
		tail         string
	)

	for iter.Scan(&occurred, &eventIDStr, &typ, &requestIDStr, &family, &handle, &cause, &detail, &tail) {
		ev, err := toEvent(connectionID, occurred, eventIDStr, typ, requestIDStr, family, handle, cause, detail, tail)
		if err != nil {
			continue
		}
		events = append(events, ev)
		cause = nil
	}

	if err := iter.Close(); err != nil {
		return nil, nil, fmt.Errorf("event store: iter close: %w", err)
	}

	return events, iter.PageState(), nil
}

func toEvent(connectionID uuid.UUID, occurred time.Time, eventID, typ, requestID, family, handle string, cause *string, detail, tail string) (domain.LifecycleEvent, error) {
	id, err := uuid.Parse(eventID)
	if err != nil {
		return domain.LifecycleEvent{}, fmt.Errorf("event store: parse event_id: %w", err)
	}
	reqID, err := uuid.Parse(requestID)
	if err != nil {
		return domain.LifecycleEvent{}, fmt.Errorf("event store: parse request_id: %w", err)
	}

	ev := domain.LifecycleEvent{
		ID:           id,
		Type:         domain.LifecycleEventType(typ),
		RequestID:    reqID,
		ConnectionID: connectionID,
		Family:       family,
		Handle:       handle,
		Detail:       detail,
		PostDialTail: tail,
		OccurredAt:   occurred,
	}
	if cause != nil {
		c, err := domain.ParseDisconnectCause(*cause)
		if err != nil {
			return domain.LifecycleEvent{}, fmt.Errorf("event store: %w", err)
		}
		ev.Cause = &c
	}
	return ev, nil
}
