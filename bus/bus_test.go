package bus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSubscriberSeesEventsInOrder(t *testing.T) {
	b := New(128)
	defer b.Close()

	var mu sync.Mutex
	var got []uint64
	done := make(chan struct{})
	b.Subscribe(EventStateChanged, func(_ context.Context, e *Event) {
		mu.Lock()
		got = append(got, e.Version)
		n := len(got)
		mu.Unlock()
		if n == 100 {
			close(done)
		}
	})

	for v := uint64(1); v <= 100; v++ {
		e, err := NewEvent(EventStateChanged, "test", v, map[string]uint64{"v": v})
		if err != nil {
			t.Fatalf("NewEvent() error = %v", err)
		}
		b.Publish(e)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for events")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != uint64(i+1) {
			t.Fatalf("event %d has version %d; order = %v", i, v, got)
		}
	}
}

func TestOtherEventTypesAreIgnored(t *testing.T) {
	b := New(4)
	called := make(chan struct{}, 1)
	b.Subscribe(EventType("other"), func(context.Context, *Event) { called <- struct{}{} })

	e, _ := NewEvent(EventStateChanged, "test", 1, nil)
	b.Publish(e)
	b.Close()

	select {
	case <-called:
		t.Fatalf("handler for another type was called")
	default:
	}
}

func TestPanickingHandlerDoesNotStopDelivery(t *testing.T) {
	b := New(8)
	var mu sync.Mutex
	var seen []uint64
	b.Subscribe(EventStateChanged, func(_ context.Context, e *Event) {
		if e.Version == 1 {
			panic("boom")
		}
		mu.Lock()
		seen = append(seen, e.Version)
		mu.Unlock()
	})
	for v := uint64(1); v <= 3; v++ {
		e, _ := NewEvent(EventStateChanged, "test", v, nil)
		b.Publish(e)
	}
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != 2 || seen[1] != 3 {
		t.Fatalf("seen = %v, want [2 3]", seen)
	}
}

func TestUnsubscribeDrainsAndStops(t *testing.T) {
	b := New(8)
	defer b.Close()

	var mu sync.Mutex
	count := 0
	id := b.Subscribe(EventStateChanged, func(context.Context, *Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	e, _ := NewEvent(EventStateChanged, "test", 1, nil)
	b.Publish(e)
	b.Unsubscribe(id)
	b.Publish(e)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("handler called %d times, want 1", count)
	}
}

func TestParseDataRoundTrip(t *testing.T) {
	e, err := NewEvent(EventStateChanged, "controller", 9, struct {
		Busy bool `json:"busy"`
	}{Busy: true})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	var out struct {
		Busy bool `json:"busy"`
	}
	if err := e.ParseData(&out); err != nil || !out.Busy {
		t.Fatalf("ParseData() = %+v, %v", out, err)
	}
	if e.Version != 9 || e.Source != "controller" || e.ID == "" {
		t.Fatalf("event = %+v", e)
	}
}
