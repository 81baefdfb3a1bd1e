package bus

import (
	"sync"
	"time"
)

// EventType names the change categories broadcast to subscribers.
type EventType string

const (
	EventItemCreated   EventType = "item_created"
	EventItemUpdated   EventType = "item_updated"
	EventItemDeleted   EventType = "item_deleted"
	EventSpacesChanged EventType = "spaces_changed"
	EventActiveSpace   EventType = "active_space_changed"
	EventJobProgress   EventType = "job_progress"
)

// Event is a single change notification. Payload carries a type-specific
// snapshot (item record, progress update, space list) and must be treated as
// immutable by subscribers.
type Event struct {
	Sequence  uint64    `json:"seq"`
	Type      EventType `json:"type"`
	ItemID    string    `json:"item_id,omitempty"`
	SpaceID   string    `json:"space_id,omitempty"`
	Timestamp time.Time `json:"ts"`
	Payload   any       `json:"payload,omitempty"`
}

// Progress is the payload of EventJobProgress events.
type Progress struct {
	ItemID        string  `json:"item_id"`
	Job           string  `json:"job"`
	Status        string  `json:"status"`
	Fraction      float64 `json:"fraction"`
	Chunk         int     `json:"chunk,omitempty"`
	ChunkTotal    int     `json:"chunk_total,omitempty"`
	Message       string  `json:"message,omitempty"`
	PartialResult string  `json:"partial_result,omitempty"`
	ErrorKind     string  `json:"error_kind,omitempty"`
}

// Hub broadcasts change events to subscribers without blocking the
// publisher. Each subscriber owns a bounded queue; when a queue fills, the
// subscriber drops to coalesce mode where only the newest event per item is
// retained until the consumer catches up.
type Hub struct {
	mu      sync.Mutex
	nextSeq uint64
	nextSub int
	subs    map[int]*subscriber
}

const defaultQueueDepth = 256

type subscriber struct {
	ch     chan Event
	filter func(Event) bool

	mu        sync.Mutex
	closed    bool
	coalesced map[string]Event // item id -> newest event while saturated
	order     []string
	overflow  []Event // non-item events that arrived while saturated
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]*subscriber)}
}

// Subscribe registers a consumer and returns its receive channel plus a
// disposer. The disposer is idempotent; after it runs the channel is closed.
// A nil filter receives every event.
func (h *Hub) Subscribe(filter func(Event) bool) (<-chan Event, func()) {
	sub := &subscriber{
		ch:        make(chan Event, defaultQueueDepth),
		filter:    filter,
		coalesced: make(map[string]Event),
	}

	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	dispose := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			sub.mu.Lock()
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
			sub.mu.Unlock()
		})
	}
	return sub.ch, dispose
}

// Close disposes every remaining subscriber. Subsequent Publish calls fan
// out to nobody; Subscribe after Close still works but is not expected.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for id, sub := range h.subs {
		subs = append(subs, sub)
		delete(h.subs, id)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.mu.Lock()
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
		sub.mu.Unlock()
	}
}

// Publish stamps the event and fans it out. Publish never blocks on a slow
// subscriber.
func (h *Hub) Publish(evt Event) {
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	subs := make([]*subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(evt)
	}
}

func (sub *subscriber) deliver(evt Event) {
	if sub.filter != nil && !sub.filter(evt) {
		return
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}

	// Drain anything coalesced earlier, preserving per-item order.
	sub.flushLocked()

	if len(sub.coalesced) == 0 && len(sub.overflow) == 0 {
		select {
		case sub.ch <- evt:
			return
		default:
		}
	}

	if evt.ItemID == "" {
		sub.overflow = append(sub.overflow, evt)
		return
	}
	if _, seen := sub.coalesced[evt.ItemID]; !seen {
		sub.order = append(sub.order, evt.ItemID)
	}
	sub.coalesced[evt.ItemID] = evt
}

func (sub *subscriber) flushLocked() {
	for len(sub.overflow) > 0 {
		select {
		case sub.ch <- sub.overflow[0]:
			sub.overflow = sub.overflow[1:]
		default:
			return
		}
	}
	for len(sub.order) > 0 {
		id := sub.order[0]
		evt, ok := sub.coalesced[id]
		if !ok {
			sub.order = sub.order[1:]
			continue
		}
		select {
		case sub.ch <- evt:
			delete(sub.coalesced, id)
			sub.order = sub.order[1:]
		default:
			return
		}
	}
}
