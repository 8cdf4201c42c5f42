package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasnim.dev/cloud-gatekeeper/internal/access"
)

type recordingSubscriber struct {
	name string

	mu   sync.Mutex
	seen []string

	created  func(access.Created) error
	approved func(access.Approved) error
	rejected func(access.Rejected) error
}

func (s *recordingSubscriber) Name() string { return s.name }

func (s *recordingSubscriber) record(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, kind)
}

func (s *recordingSubscriber) OnCreated(_ context.Context, e access.Created) error {
	s.record("created")
	if s.created != nil {
		return s.created(e)
	}
	return nil
}

func (s *recordingSubscriber) OnApproved(_ context.Context, e access.Approved) error {
	s.record("approved")
	if s.approved != nil {
		return s.approved(e)
	}
	return nil
}

func (s *recordingSubscriber) OnRejected(_ context.Context, e access.Rejected) error {
	s.record("rejected")
	if s.rejected != nil {
		return s.rejected(e)
	}
	return nil
}

func TestStageAndDrain(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	bus.Stage("r1", access.Created{RequestID: "r1"})
	bus.Stage("r2", access.Created{RequestID: "r2"})
	bus.Stage("r1", access.Approved{RequestID: "r1", ApproverID: "A"})

	evs := bus.Drain("r1")
	require.Len(t, evs, 2)
	assert.IsType(t, access.Created{}, evs[0])
	assert.IsType(t, access.Approved{}, evs[1])

	assert.Empty(t, bus.Drain("r1"), "drain is at-most-once")
	assert.Len(t, bus.Drain("r2"), 1)
}

func TestDispatch_PreservesEventOrder(t *testing.T) {
	sub := &recordingSubscriber{name: "rec"}
	bus := NewBus(zerolog.Nop(), sub)

	bus.Stage("r1", access.Created{RequestID: "r1"}, access.Approved{RequestID: "r1"})
	results := bus.Flush(context.Background(), "r1")

	assert.Equal(t, []string{"created", "approved"}, sub.seen)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, "rec", r.Subscriber)
	}
}

func TestDispatch_IsolatesFailures(t *testing.T) {
	boom := errors.New("chat down")
	failing := &recordingSubscriber{name: "notify", approved: func(access.Approved) error { return boom }}
	panicking := &recordingSubscriber{name: "provision", approved: func(access.Approved) error { panic("nil map") }}
	healthy := &recordingSubscriber{name: "audit"}

	bus := NewBus(zerolog.Nop(), failing, panicking, healthy)
	results := bus.Dispatch(context.Background(), []access.Event{access.Approved{RequestID: "r1"}})

	require.Len(t, results, 3)
	bySub := map[string]error{}
	for _, r := range results {
		bySub[r.Subscriber] = r.Err
	}
	assert.ErrorIs(t, bySub["notify"], boom)
	assert.ErrorContains(t, bySub["provision"], "panicked")
	assert.NoError(t, bySub["audit"])
	assert.Equal(t, []string{"approved"}, healthy.seen)
}

func TestDispatch_OmitsIgnored(t *testing.T) {
	sub := &recordingSubscriber{name: "provision", created: func(access.Created) error { return ErrIgnored }}
	bus := NewBus(zerolog.Nop(), sub)

	results := bus.Dispatch(context.Background(), []access.Event{access.Created{RequestID: "r1"}})
	assert.Empty(t, results)
}

func TestDispatch_RunsSubscribersConcurrently(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	wait := func(access.Rejected) error {
		started <- struct{}{}
		<-release
		return nil
	}
	a := &recordingSubscriber{name: "a", rejected: wait}
	b := &recordingSubscriber{name: "b", rejected: wait}
	bus := NewBus(zerolog.Nop(), a, b)

	done := make(chan []Result)
	go func() {
		done <- bus.Dispatch(context.Background(), []access.Event{access.Rejected{RequestID: "r1"}})
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("subscribers did not run concurrently")
		}
	}
	close(release)
	assert.Len(t, <-done, 2)
}

func TestDispatch_IgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var gotCtxErr error
	watcher := &ctxWatcher{fn: func(ctx context.Context) { gotCtxErr = ctx.Err() }}
	bus := NewBus(zerolog.Nop(), watcher)
	bus.Dispatch(ctx, []access.Event{access.Approved{RequestID: "r1"}})

	assert.NoError(t, gotCtxErr)
}

type ctxWatcher struct {
	fn func(context.Context)
}

func (p *ctxWatcher) Name() string { return "ctx-watcher" }
func (p *ctxWatcher) OnCreated(ctx context.Context, _ access.Created) error {
	p.fn(ctx)
	return nil
}
func (p *ctxWatcher) OnApproved(ctx context.Context, _ access.Approved) error {
	p.fn(ctx)
	return nil
}
func (p *ctxWatcher) OnRejected(ctx context.Context, _ access.Rejected) error {
	p.fn(ctx)
	return nil
}
