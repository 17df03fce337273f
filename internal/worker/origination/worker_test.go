package origination

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/telephony-bridge/internal/bridge"
	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/family/circuit"
	"github.com/acme/telephony-bridge/internal/queue"
	"github.com/acme/telephony-bridge/internal/registry"
	"github.com/acme/telephony-bridge/internal/telephony/mock"
)

type fakeReplies struct {
	mu   sync.Mutex
	msgs []queue.ReplyMessage
	err  error
}

func (f *fakeReplies) PublishReply(_ context.Context, msg queue.ReplyMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

// fakeReader serves queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		m := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	r.committed = append(r.committed, msgs...)
	r.mu.Unlock()
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

func (s *recordingSink) Publish(_ context.Context, ev domain.LifecycleEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) failed() []domain.LifecycleEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LifecycleEvent
	for _, ev := range s.events {
		if ev.Type == domain.LifecycleFailed {
			out = append(out, ev)
		}
	}
	return out
}

func newRecordedWorker(phone *mock.Phone) (*Worker, *recordingSink) {
	sink := &recordingSink{}
	svc := bridge.NewService(phone, circuit.New("US", nil), registry.New(), sink, nil, time.Second)
	return NewWorker(svc, &fakeReplies{}, nil, nil, nil), sink
}

func newTestWorker(phone *mock.Phone) (*Worker, *fakeReplies, *registry.Registry) {
	reg := registry.New()
	svc := bridge.NewService(phone, circuit.New("US", nil), reg, nil, nil, time.Second)
	replies := &fakeReplies{}
	return NewWorker(svc, replies, nil, nil, nil), replies, reg
}

type fakeSlots struct {
	mu       sync.Mutex
	free     int
	err      error
	acquired int
	released int
}

func (f *fakeSlots) Acquire(context.Context, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.free == 0 {
		return false, nil
	}
	f.free--
	f.acquired++
	return true, nil
}

func (f *fakeSlots) Release(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.free++
	f.released++
	return nil
}

func TestHandleOriginate(t *testing.T) {
	w, _, reg := newTestWorker(mock.NewScriptedPhone(domain.ServiceStateInService))
	id := uuid.New()

	reply := w.handle(context.Background(), queue.RequestMessage{
		RequestID: id,
		Operation: queue.OperationOriginate,
		Handle:    "tel:+16502530000",
	})

	require.True(t, reply.Success)
	assert.Equal(t, id, reply.RequestID)
	require.NotNil(t, reply.ConnectionID)
	assert.Equal(t, "+16502530000", reply.RemoteAddress)
	assert.Equal(t, 1, reg.Len())
}

func TestHandleOriginateFailures(t *testing.T) {
	phone := mock.NewScriptedPhone(domain.ServiceStateOutOfService)
	w, _, _ := newTestWorker(phone)

	reply := w.handle(context.Background(), queue.RequestMessage{Operation: queue.OperationOriginate, Handle: "tel:+16502530000"})
	assert.False(t, reply.Success)
	assert.Equal(t, "OUT_OF_SERVICE", reply.Cause)

	reply = w.handle(context.Background(), queue.RequestMessage{Operation: queue.OperationOriginate})
	assert.Equal(t, "NO_NUMBER_SUPPLIED", reply.Cause)

	reply = w.handle(context.Background(), queue.RequestMessage{Operation: queue.OperationOriginate, Handle: "no-scheme"})
	assert.Equal(t, "INVALID_NUMBER", reply.Cause)

	reply = w.handle(context.Background(), queue.RequestMessage{Operation: "teleport", Handle: "tel:1"})
	assert.Equal(t, "UNSPECIFIED_ERROR", reply.Cause)
	assert.Empty(t, phone.Dialed())
}

func TestHandleFindSubscriptions(t *testing.T) {
	w, _, _ := newTestWorker(mock.NewScriptedPhone(domain.ServiceStateInService))

	reply := w.handle(context.Background(), queue.RequestMessage{Operation: queue.OperationFindSubscriptions, Handle: "tel:+16502530000"})
	require.True(t, reply.Success)
	require.NotNil(t, reply.Subscription)
	assert.Equal(t, circuit.Name, reply.Subscription.Family)

	reply = w.handle(context.Background(), queue.RequestMessage{Operation: queue.OperationFindSubscriptions, Handle: "sip:a@b.c"})
	assert.True(t, reply.Success)
	assert.Nil(t, reply.Subscription)

	reply = w.handle(context.Background(), queue.RequestMessage{Operation: queue.OperationFindSubscriptions, Handle: "no-scheme"})
	assert.True(t, reply.Success, "an unparseable handle is an unmatched handle")
	assert.Nil(t, reply.Subscription)
	assert.Empty(t, reply.Cause)
}

func TestRejectedOriginationsPublishFailure(t *testing.T) {
	t.Run("unparseable handle", func(t *testing.T) {
		phone := mock.NewScriptedPhone(domain.ServiceStateInService)
		w, sink := newRecordedWorker(phone)
		id := uuid.New()

		reply := w.handle(context.Background(), queue.RequestMessage{RequestID: id, Operation: queue.OperationOriginate, Handle: "no-scheme"})

		assert.Equal(t, "INVALID_NUMBER", reply.Cause)
		failed := sink.failed()
		require.Len(t, failed, 1)
		assert.Equal(t, id, failed[0].RequestID)
		assert.Equal(t, "no-scheme", failed[0].Handle)
		assert.Empty(t, phone.Dialed())
	})

	t.Run("no dial slot", func(t *testing.T) {
		phone := mock.NewScriptedPhone(domain.ServiceStateInService)
		w, sink := newRecordedWorker(phone)
		w.slots = &fakeSlots{}
		w.slotWait = 20 * time.Millisecond
		id := uuid.New()

		reply := w.handle(context.Background(), queue.RequestMessage{RequestID: id, Operation: queue.OperationOriginate, Handle: "tel:+16502530000"})

		assert.Equal(t, "no dial slot available", reply.Detail)
		failed := sink.failed()
		require.Len(t, failed, 1)
		assert.Equal(t, id, failed[0].RequestID)
		require.NotNil(t, failed[0].Cause)
		assert.Equal(t, domain.CauseUnspecifiedError, *failed[0].Cause)
		assert.Empty(t, phone.Dialed())
	})
}

func TestRunRepliesAndCommits(t *testing.T) {
	phone := mock.NewScriptedPhone(domain.ServiceStateInService)
	w, replies, _ := newTestWorker(phone)

	valid, err := json.Marshal(queue.RequestMessage{RequestID: uuid.New(), Operation: queue.OperationOriginate, Handle: "tel:+16502530000"})
	require.NoError(t, err)
	reader := &fakeReader{pending: []kafka.Message{
		{Value: []byte("{garbage")},
		{Value: valid},
	}}
	w.reader = func() MessageReader { return reader }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, reader.closed)
	replies.mu.Lock()
	defer replies.mu.Unlock()
	require.Len(t, replies.msgs, 1)
	assert.True(t, replies.msgs[0].Success)
}

func TestProcessMessageReportsPublishFailure(t *testing.T) {
	w, replies, _ := newTestWorker(mock.NewScriptedPhone(domain.ServiceStateInService))
	replies.err = errors.New("broker down")

	value, err := json.Marshal(queue.RequestMessage{Operation: queue.OperationFindSubscriptions, Handle: "tel:+16502530000"})
	require.NoError(t, err)

	assert.Error(t, w.processMessage(context.Background(), kafka.Message{Value: value}))
}

func TestHandleOriginateHoldsDialSlot(t *testing.T) {
	w, _, _ := newTestWorker(mock.NewScriptedPhone(domain.ServiceStateInService))
	slots := &fakeSlots{free: 1}
	w.slots = slots

	reply := w.handle(context.Background(), queue.RequestMessage{Operation: queue.OperationOriginate, Handle: "tel:+16502530000"})
	require.True(t, reply.Success)
	assert.Equal(t, 1, slots.acquired)
	assert.Equal(t, 1, slots.released)
	assert.Equal(t, 1, slots.free)
}

func TestHandleOriginateWithoutDialSlot(t *testing.T) {
	phone := mock.NewScriptedPhone(domain.ServiceStateInService)
	w, _, _ := newTestWorker(phone)
	w.slots = &fakeSlots{}
	w.slotWait = 50 * time.Millisecond

	reply := w.handle(context.Background(), queue.RequestMessage{Operation: queue.OperationOriginate, Handle: "tel:+16502530000"})
	assert.False(t, reply.Success)
	assert.Equal(t, "UNSPECIFIED_ERROR", reply.Cause)
	assert.Equal(t, "no dial slot available", reply.Detail)
	assert.Empty(t, phone.Dialed())
}

func TestHandleOriginateFailsOpenOnLimiterError(t *testing.T) {
	w, _, _ := newTestWorker(mock.NewScriptedPhone(domain.ServiceStateInService))
	slots := &fakeSlots{err: errors.New("redis down")}
	w.slots = slots

	reply := w.handle(context.Background(), queue.RequestMessage{Operation: queue.OperationOriginate, Handle: "tel:+16502530000"})
	assert.True(t, reply.Success)
	assert.Zero(t, slots.released)
}
