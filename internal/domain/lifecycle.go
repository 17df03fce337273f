package domain

import (
	"time"

	"github.com/google/uuid"
)

// LifecycleEventType enumerates bridge lifecycle notifications.
type LifecycleEventType string

const (
	LifecycleOriginated   LifecycleEventType = "originated"
	LifecycleFailed       LifecycleEventType = "failed"
	LifecyclePostDialWait LifecycleEventType = "post_dial_wait"
	LifecycleDestroyed    LifecycleEventType = "destroyed"
)

// LifecycleEvent describes one step in the life of an origination.
// ConnectionID is uuid.Nil for failures that happened before a dial succeeded.
type LifecycleEvent struct {
	ID           uuid.UUID
	Type         LifecycleEventType
	RequestID    uuid.UUID
	ConnectionID uuid.UUID
	Family       string
	Handle       string
	Cause        *DisconnectCause
	Detail       string
	PostDialTail string
	OccurredAt   time.Time
}

// OriginationOutcome is the persisted result of an origination request.
type OriginationOutcome string

const (
	OutcomeConnected OriginationOutcome = "connected"
	OutcomeFailed    OriginationOutcome = "failed"
)

// OriginationAttempt is the storage record of a single origination request.
type OriginationAttempt struct {
	RequestID    uuid.UUID
	ConnectionID *uuid.UUID
	Family       string
	Handle       string
	Outcome      OriginationOutcome
	Cause        *DisconnectCause
	Detail       string
	CreatedAt    time.Time
	// EndedAt is set once the connection is destroyed.
	EndedAt *time.Time
}
