package bus_test

import (
	"testing"
	"time"

	"clipspace/internal/bus"
)

func collect(ch <-chan bus.Event, n int, t *testing.T) []bus.Event {
	t.Helper()
	out := make([]bus.Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case evt, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, evt)
		case <-timeout:
			t.Fatalf("timed out after %d events", len(out))
		}
	}
	return out
}

func TestPerItemOrdering(t *testing.T) {
	hub := bus.NewHub()
	ch, dispose := hub.Subscribe(nil)
	defer dispose()

	for i := 0; i < 10; i++ {
		hub.Publish(bus.Event{Type: bus.EventItemUpdated, ItemID: "a"})
	}
	events := collect(ch, 10, t)
	var last uint64
	for _, evt := range events {
		if evt.Sequence <= last {
			t.Fatalf("sequence regressed: %d after %d", evt.Sequence, last)
		}
		last = evt.Sequence
	}
}

func TestFilterLimitsDelivery(t *testing.T) {
	hub := bus.NewHub()
	ch, dispose := hub.Subscribe(func(evt bus.Event) bool {
		return evt.Type == bus.EventJobProgress
	})
	defer dispose()

	hub.Publish(bus.Event{Type: bus.EventItemCreated, ItemID: "x"})
	hub.Publish(bus.Event{Type: bus.EventJobProgress, ItemID: "x"})

	events := collect(ch, 1, t)
	if events[0].Type != bus.EventJobProgress {
		t.Fatalf("unexpected event type %s", events[0].Type)
	}
	select {
	case evt := <-ch:
		t.Fatalf("unexpected extra event %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberCoalesces(t *testing.T) {
	hub := bus.NewHub()
	ch, dispose := hub.Subscribe(nil)
	defer dispose()

	// Saturate the queue without consuming, far past its depth, across two items.
	for i := 0; i < 2000; i++ {
		id := "a"
		if i%2 == 1 {
			id = "b"
		}
		hub.Publish(bus.Event{Type: bus.EventItemUpdated, ItemID: id})
	}
	// A publish after saturation nudges coalesced events out as we drain.
	hub.Publish(bus.Event{Type: bus.EventItemUpdated, ItemID: "a"})

	seen := map[string]uint64{}
	drained := 0
	for {
		select {
		case evt := <-ch:
			drained++
			if prev, ok := seen[evt.ItemID]; ok && evt.Sequence <= prev {
				t.Fatalf("per-item order violated for %s: %d after %d", evt.ItemID, evt.Sequence, prev)
			}
			seen[evt.ItemID] = evt.Sequence
		case <-time.After(100 * time.Millisecond):
			if drained == 0 {
				t.Fatal("no events delivered")
			}
			if drained > 2001 {
				t.Fatalf("delivered more events than published: %d", drained)
			}
			return
		}
	}
}

func TestDisposerIsIdempotent(t *testing.T) {
	hub := bus.NewHub()
	ch, dispose := hub.Subscribe(nil)
	dispose()
	dispose()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after dispose")
	}
	// Publishing after dispose must not panic.
	hub.Publish(bus.Event{Type: bus.EventItemCreated, ItemID: "x"})
}

func TestCloseTerminatesSubscribers(t *testing.T) {
	hub := bus.NewHub()
	first, disposeFirst := hub.Subscribe(nil)
	second, _ := hub.Subscribe(nil)

	hub.Close()

	if _, ok := <-first; ok {
		t.Fatal("first channel should be closed after hub Close")
	}
	if _, ok := <-second; ok {
		t.Fatal("second channel should be closed after hub Close")
	}
	// A disposer running after Close must not double-close.
	disposeFirst()
	// Publishing after Close must not panic.
	hub.Publish(bus.Event{Type: bus.EventItemCreated, ItemID: "x"})
}
