// Package events dispatches access request lifecycle events to subscribers.
//
// Events are staged per aggregate id and drained once per decision. Each
// subscriber runs in isolation: an error or panic in one never reaches the
// others or the caller of Dispatch.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tasnim.dev/cloud-gatekeeper/internal/access"
)

// ErrIgnored is returned by a subscriber that has nothing to do for an event.
// Ignored deliveries are left out of Dispatch results.
var ErrIgnored = errors.New("event ignored")

// Subscriber handles every kind of lifecycle event. Adding a kind to the
// access.Event union means adding a method here.
type Subscriber interface {
	Name() string
	OnCreated(ctx context.Context, e access.Created) error
	OnApproved(ctx context.Context, e access.Approved) error
	OnRejected(ctx context.Context, e access.Rejected) error
}

// Result is the outcome of delivering one event to one subscriber.
type Result struct {
	Subscriber string
	Event      access.Event
	Err        error
}

// Bus stages events per aggregate and fans them out to subscribers.
type Bus struct {
	mu          sync.Mutex
	pending     map[string][]access.Event
	subscribers []Subscriber
	log         zerolog.Logger
}

// NewBus creates a bus delivering to the given subscribers in order of
// registration.
func NewBus(log zerolog.Logger, subscribers ...Subscriber) *Bus {
	return &Bus{
		pending:     make(map[string][]access.Event),
		subscribers: subscribers,
		log:         log,
	}
}

// Stage queues events for the aggregate until Drain is called.
func (b *Bus) Stage(aggregateID string, evs ...access.Event) {
	if len(evs) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[aggregateID] = append(b.pending[aggregateID], evs...)
}

// Drain removes and returns the events staged for the aggregate.
func (b *Bus) Drain(aggregateID string) []access.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	evs := b.pending[aggregateID]
	delete(b.pending, aggregateID)
	return evs
}

// Flush drains the aggregate's events and dispatches them.
func (b *Bus) Flush(ctx context.Context, aggregateID string) []Result {
	return b.Dispatch(ctx, b.Drain(aggregateID))
}

// Dispatch delivers events in order. For each event all subscribers run
// concurrently and Dispatch waits for every one of them before moving on.
// Cancellation of ctx is not propagated to subscribers.
func (b *Bus) Dispatch(ctx context.Context, evs []access.Event) []Result {
	ctx = context.WithoutCancel(ctx)

	var (
		mu      sync.Mutex
		results []Result
	)
	for _, ev := range evs {
		var g errgroup.Group
		for _, sub := range b.subscribers {
			g.Go(func() error {
				err := b.deliver(ctx, sub, ev)
				if errors.Is(err, ErrIgnored) {
					return nil
				}
				mu.Lock()
				results = append(results, Result{Subscriber: sub.Name(), Event: ev, Err: err})
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}
	return results
}

func (b *Bus) deliver(ctx context.Context, sub Subscriber, ev access.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("subscriber", sub.Name()).
				Str("event", access.EventName(ev)).
				Interface("panic", r).
				Msg("subscriber panicked")
			err = fmt.Errorf("subscriber %s panicked: %v", sub.Name(), r)
		}
	}()

	switch e := ev.(type) {
	case access.Created:
		return sub.OnCreated(ctx, e)
	case access.Approved:
		return sub.OnApproved(ctx, e)
	case access.Rejected:
		return sub.OnRejected(ctx, e)
	default:
		return fmt.Errorf("unknown event type %T", ev)
	}
}
