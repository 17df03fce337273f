package call

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/queue"
	"github.com/acme/telephony-bridge/internal/service/common"
	apperrors "github.com/acme/telephony-bridge/pkg/errors"
)

type fakeEnqueuer struct {
	msgs []queue.RequestMessage
	err  error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, msg queue.RequestMessage) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

type fakeAttempts struct {
	byID      map[uuid.UUID]*domain.OriginationAttempt
	lastLimit int
}

func (f *fakeAttempts) Record(_ context.Context, a *domain.OriginationAttempt) error {
	f.byID[a.RequestID] = a
	return nil
}

func (f *fakeAttempts) MarkEnded(context.Context, uuid.UUID, time.Time) error { return nil }

func (f *fakeAttempts) Get(_ context.Context, id uuid.UUID) (*domain.OriginationAttempt, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return a, nil
}

func (f *fakeAttempts) ListRecent(_ context.Context, limit int) ([]*domain.OriginationAttempt, error) {
	f.lastLimit = limit
	return nil, nil
}

type fakeEvents struct {
	events   []domain.LifecycleEvent
	next     []byte
	gotState []byte
	gotLimit int
}

func (f *fakeEvents) Append(_ context.Context, ev domain.LifecycleEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEvents) ListByConnection(_ context.Context, _ uuid.UUID, limit int, state []byte) ([]domain.LifecycleEvent, []byte, error) {
	f.gotLimit = limit
	f.gotState = state
	return f.events, f.next, nil
}

func TestEnqueue(t *testing.T) {
	requests := &fakeEnqueuer{}
	svc := NewService(requests, nil, nil)

	h, err := domain.ParseHandle("tel:+16502530000")
	require.NoError(t, err)
	req := domain.NewCallRequest(h, map[string]string{"k": "v"})

	require.NoError(t, svc.Enqueue(context.Background(), req, "tel:+16502530000"))
	require.Len(t, requests.msgs, 1)
	assert.Equal(t, req.ID, requests.msgs[0].RequestID)
	assert.Equal(t, queue.OperationOriginate, requests.msgs[0].Operation)
	assert.Equal(t, "v", requests.msgs[0].Extras["k"])

	requests.err = errors.New("broker down")
	assert.ErrorIs(t, svc.Enqueue(context.Background(), req, ""), apperrors.ErrUnavailable)
}

func TestUnconfiguredCollaborators(t *testing.T) {
	svc := NewService(nil, nil, nil)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Enqueue(ctx, domain.NewCallRequest(nil, nil), ""), apperrors.ErrUnavailable)
	_, err := svc.Attempt(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	_, err = svc.Recent(ctx, 5)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	_, err = svc.Timeline(ctx, uuid.New(), 5, "")
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestAttemptAndRecent(t *testing.T) {
	attempts := &fakeAttempts{byID: map[uuid.UUID]*domain.OriginationAttempt{}}
	svc := NewService(nil, attempts, nil)
	id := uuid.New()
	attempts.byID[id] = &domain.OriginationAttempt{RequestID: id, Outcome: domain.OutcomeConnected}

	got, err := svc.Attempt(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, got.RequestID)

	_, err = svc.Attempt(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, defaultRecentLimit, attempts.lastLimit)
}

func TestTimelinePaging(t *testing.T) {
	events := &fakeEvents{
		events: []domain.LifecycleEvent{{Type: domain.LifecycleOriginated}},
		next:   []byte{0x01, 0x02},
	}
	svc := NewService(nil, nil, events)

	page, err := svc.Timeline(context.Background(), uuid.New(), 0, "")
	require.NoError(t, err)
	assert.Len(t, page.Events, 1)
	assert.Equal(t, defaultTimelineLimit, events.gotLimit)
	assert.Nil(t, events.gotState)
	require.NotEmpty(t, page.NextToken)

	events.next = nil
	page, err = svc.Timeline(context.Background(), uuid.New(), 10_000, page.NextToken)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, events.gotState)
	assert.Equal(t, maxTimelineLimit, events.gotLimit)
	assert.Empty(t, page.NextToken)
	assert.Equal(t, "", common.EncodePageToken(nil))

	_, err = svc.Timeline(context.Background(), uuid.New(), 1, "%%%")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
