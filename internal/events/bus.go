package events

import (
	"sync"
	"time"
)

// EventType represents different types of telemetry events
type EventType string

const (
	EventStateUpdate          EventType = "STATE_UPDATE"
	EventHeartbeat            EventType = "HEARTBEAT"
	EventLog                  EventType = "LOG"
	EventMarker               EventType = "MARKER"
	EventTradeOpened          EventType = "TRADE_OPENED"
	EventTradeClosed          EventType = "TRADE_CLOSED"
	EventBotStarted           EventType = "BOT_STARTED"
	EventBotStopped           EventType = "BOT_STOPPED"
	EventCircuitBreakerUpdate EventType = "CIRCUIT_BREAKER_UPDATE"
	EventError                EventType = "ERROR"
)

// Marker sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Event represents a telemetry event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Sink receives telemetry. Delivery is at most once and never blocks the
// engine.
type Sink interface {
	Publish(event Event)
}

// Fanout publishes to several sinks
type Fanout []Sink

// Publish sends the event to every non-nil sink
func (f Fanout) Publish(event Event) {
	for _, s := range f {
		if s != nil {
			s.Publish(event)
		}
	}
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// NewMarkerEvent builds a chart marker event
func NewMarkerEvent(candleTime int64, side string, price float64, label string) Event {
	return Event{
		Type: EventMarker,
		Data: map[string]interface{}{
			"time":  candleTime,
			"side":  side,
			"price": price,
			"label": label,
		},
	}
}

// NewLogEvent builds a log line event
func NewLogEvent(level, message string) Event {
	return Event{
		Type: EventLog,
		Data: map[string]interface{}{
			"level":   level,
			"message": message,
		},
	}
}

// NewErrorEvent builds an error event
func NewErrorEvent(source, message string, err error) Event {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	return Event{Type: EventError, Data: data}
}
