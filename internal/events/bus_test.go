package events

import (
	"sync"
	"testing"
	"time"
)

func TestEventBusDelivery(t *testing.T) {
	bus := NewEventBus()

	typed := make(chan Event, 1)
	all := make(chan Event, 2)
	bus.Subscribe(EventMarker, func(e Event) { typed <- e })
	bus.SubscribeAll(func(e Event) { all <- e })

	bus.Publish(NewMarkerEvent(120, SideBuy, 101.5, "LONG (TRENDING)"))
	bus.Publish(NewLogEvent("INFO", "hello"))

	select {
	case e := <-typed:
		if e.Data["side"] != SideBuy || e.Data["label"] != "LONG (TRENDING)" {
			t.Errorf("marker data = %v", e.Data)
		}
		if e.Timestamp.IsZero() {
			t.Error("Publish should stamp the event")
		}
	case <-time.After(time.Second):
		t.Fatal("typed subscriber not called")
	}

	for i := 0; i < 2; i++ {
		select {
		case <-all:
		case <-time.After(time.Second):
			t.Fatal("all-events subscriber missed an event")
		}
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestFanout(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	f := Fanout{a, nil, b}

	f.Publish(NewErrorEvent("engine", "save failed", nil))

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("fanout delivered %d/%d events", len(a.events), len(b.events))
	}
	if _, ok := a.events[0].Data["error"]; ok {
		t.Error("nil error should not be encoded")
	}
}
