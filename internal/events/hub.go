// Package events is the structural event feed of a grid: an in-memory
// pub/sub with a ring buffer so late subscribers can catch up.
package events

import (
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the grid.
const (
	SegmentCreated = "segment.created"
	SegmentDropped = "segment.dropped"
	RowInserted    = "row.inserted"
	RowUpdated     = "row.updated"
	RowDestroyed   = "row.destroyed"
	CellsAdded     = "cells.added"
	CellsLinked    = "cells.linked"
	CommandBlocked = "command.blocked"
)

type Event struct {
	ID   int64     `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data []byte    `json:"data"` // JSON payload
}

// Publisher is the write side of a Hub.
type Publisher interface {
	Publish(eventType string, data any)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(string, any) {}

// Filter selects event types. An entry ending in ".*" matches a family,
// so "row.*" matches row.inserted and row.destroyed. An empty Filter
// matches everything.
type Filter []string

// ParseFilter splits a comma separated list such as "row.*,cells.linked".
func ParseFilter(s string) Filter {
	var f Filter
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			f = append(f, part)
		}
	}
	return f
}

// Match reports whether eventType passes the filter.
func (f Filter) Match(eventType string) bool {
	if len(f) == 0 {
		return true
	}
	for _, want := range f {
		if family, ok := strings.CutSuffix(want, ".*"); ok {
			if strings.HasPrefix(eventType, family+".") {
				return true
			}
			continue
		}
		if want == eventType {
			return true
		}
	}
	return false
}

type subscriber struct {
	ch     chan Event
	filter Filter
}

// Hub fans events out to subscribers and keeps the newest ones in a ring.
// A subscriber that falls behind loses events rather than stalling the
// grid; Dropped counts them.
type Hub struct {
	nextID  atomic.Int64
	dropped atomic.Int64
	now     func() time.Time

	mu   sync.Mutex
	ring []Event
	head int // next write position
	full bool

	subs      map[int]subscriber
	nextSubID int
}

// NewHub returns a hub buffering the last capacity events (default 100).
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		now:  time.Now,
		ring: make([]Event, capacity),
		subs: make(map[int]subscriber),
	}
}

// Publish stamps data with the next id and delivers it. data is marshalled
// to JSON; nil or unmarshallable data becomes "{}".
func (h *Hub) Publish(eventType string, data any) {
	payload := []byte("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ev := Event{
		ID:   h.nextID.Add(1),
		Type: eventType,
		At:   h.now().UTC(),
		Data: payload,
	}
	h.ring[h.head] = ev
	h.head = (h.head + 1) % len(h.ring)
	if h.head == 0 {
		h.full = true
	}

	for _, sub := range h.subs {
		if !sub.filter.Match(eventType) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe registers a live listener for events passing filter. The
// returned cancel closes the channel.
func (h *Hub) Subscribe(filter Filter) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, 128)
	h.subs[id] = subscriber{ch: ch, filter: filter}

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub.ch)
		}
	}
	return ch, cancel
}

// Since returns buffered events with ID > lastID that pass filter, oldest
// first.
func (h *Hub) Since(lastID int64, filter Filter) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Event
	for _, ev := range h.bufferedLocked() {
		if ev.ID > lastID && filter.Match(ev.Type) {
			out = append(out, ev)
		}
	}
	return out
}

// Types returns the type of every buffered event, oldest first.
func (h *Hub) Types() []string {
	evs := h.Since(0, nil)
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

// Dropped is the number of deliveries lost to full subscriber buffers.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Subscribers is the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) bufferedLocked() []Event {
	if !h.full {
		return h.ring[:h.head]
	}
	out := make([]Event, 0, len(h.ring))
	out = append(out, h.ring[h.head:]...)
	return append(out, h.ring[:h.head]...)
}
