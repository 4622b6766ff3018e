package engine

import (
	"context"
	"sync"

	"progresskit/core"
)

// DispatchMode selects synchronous or asynchronous event delivery.
type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

type subscription struct {
	id int64
	fn func(context.Context, core.Event)
}

// EventBus is the outbound message channel for progression events: the
// transactional core publishes after persisting, subscribers (notifications,
// stats, realtime) consume without being able to fail the pipeline.
type EventBus struct {
	mode   DispatchMode
	mu     sync.RWMutex
	subs   map[core.EventType]map[int64]subscription
	nextID int64

	queue  chan core.Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

const (
	asyncQueueSize = 2048
	asyncWorkers   = 4
)

func NewEventBus(mode DispatchMode) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &EventBus{
		mode:   mode,
		subs:   make(map[core.EventType]map[int64]subscription),
		queue:  make(chan core.Event, asyncQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	if mode == DispatchAsync {
		for i := 0; i < asyncWorkers; i++ {
			b.wg.Add(1)
			go b.worker()
		}
	}
	return b
}

func (b *EventBus) worker() {
	defer b.wg.Done()
	for {
		select {
		case ev := <-b.queue:
			b.dispatch(context.Background(), ev)
		case <-b.ctx.Done():
			// drain what is already queued before exiting
			for {
				select {
				case ev := <-b.queue:
					b.dispatch(context.Background(), ev)
				default:
					return
				}
			}
		}
	}
}

// Close stops async workers and waits for queued events to drain.
func (b *EventBus) Close() {
	b.cancel()
	b.wg.Wait()
}

// Subscribe registers a handler for typ. The returned func unsubscribes.
func (b *EventBus) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.subs[typ] == nil {
		b.subs[typ] = make(map[int64]subscription)
	}
	b.subs[typ][id] = subscription{id: id, fn: handler}
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if m := b.subs[typ]; m != nil {
			delete(m, id)
		}
	}
}

// Publish delivers ev to subscribers. In async mode a full queue drops the
// event rather than blocking the publisher.
func (b *EventBus) Publish(ctx context.Context, ev core.Event) {
	if b.mode == DispatchAsync {
		select {
		case b.queue <- ev:
		default:
		}
		return
	}
	b.dispatch(ctx, ev)
}

func (b *EventBus) dispatch(ctx context.Context, ev core.Event) {
	b.mu.RLock()
	subs := b.subs[ev.Type]
	handlers := make([]func(context.Context, core.Event), 0, len(subs))
	for _, s := range subs {
		handlers = append(handlers, s.fn)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, ev)
	}
}
