// Package realtime fans progression events out to live subscribers
// (WebSocket connections, SSE streams).
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"progresskit/core"
)

type subscriber struct {
	ch    chan core.Event
	types map[core.EventType]struct{} // nil means all types
}

// Hub is a simple broadcast fan-out with optional per-subscriber filtering.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

func NewHub() *Hub { return &Hub{subs: map[int]*subscriber{}} }

// Subscribe registers a buffered receiver. With no types given every event is
// delivered; otherwise only the listed types.
func (h *Hub) Subscribe(buffer int, types ...core.EventType) (int, <-chan core.Event) {
	sub := &subscriber{ch: make(chan core.Event, buffer)}
	if len(types) > 0 {
		sub.types = make(map[core.EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	h.subs[id] = sub
	return id, sub.ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Broadcast delivers ev to matching subscribers, dropping on full buffers so
// a slow client never stalls the bus.
func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	h.mu.RLock()
	receivers := make([]*subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.types != nil {
			if _, ok := sub.types[ev.Type]; !ok {
				continue
			}
		}
		receivers = append(receivers, sub)
	}
	h.mu.RUnlock()
	for _, sub := range receivers {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// MarshalJSON converts an event to JSON bytes for WebSocket/SSE framing.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
