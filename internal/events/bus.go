// Package events provides change notifications between the stores and the
// components caching statement aggregates.
package events

import (
	"log/slog"
	"sync"
	"time"
)

// EventType identifies what changed.
type EventType string

const (
	LoanChanged         EventType = "LOAN_CHANGED"
	TransactionsChanged EventType = "TRANSACTIONS_CHANGED"
	MappingsChanged     EventType = "MAPPINGS_CHANGED"
	OverridesChanged    EventType = "OVERRIDES_CHANGED"
	ConfigChanged       EventType = "CONFIG_CHANGED"
	ForecastChanged     EventType = "FORECAST_CHANGED"
	DepreciationChanged EventType = "DEPRECIATION_CHANGED"
)

// AllTypes lists every event type.
var AllTypes = []EventType{
	LoanChanged,
	TransactionsChanged,
	MappingsChanged,
	OverridesChanged,
	ConfigChanged,
	ForecastChanged,
	DepreciationChanged,
}

// Event is a change affecting one property.
type Event struct {
	Timestamp  time.Time
	Type       EventType
	Module     string
	PropertyID int64
}

// Handler receives events. Handlers run synchronously in Emit.
type Handler func(Event)

type subscription struct {
	handler Handler
	id      int
}

// Bus dispatches events to subscribers.
type Bus struct {
	logger *slog.Logger
	subs   map[EventType][]subscription
	mu     sync.RWMutex
	nextID int
}

// NewBus creates a bus. A nil logger uses slog.Default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger.With("service", "events"),
		subs:   make(map[EventType][]subscription),
	}
}

// Subscribe registers h for t and returns a function removing it.
func (b *Bus) Subscribe(t EventType, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[t] = append(b.subs[t], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[t]
		for i, s := range subs {
			if s.id == id {
				b.subs[t] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit sends an event to every subscriber of its type.
func (b *Bus) Emit(t EventType, module string, propertyID int64) {
	e := Event{
		Type:       t,
		Module:     module,
		PropertyID: propertyID,
		Timestamp:  time.Now(),
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[t]))
	for _, s := range b.subs[t] {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	b.logger.Debug("event emitted",
		"event_type", string(t),
		"module", module,
		"property_id", propertyID,
		"subscribers", len(handlers))

	for _, h := range handlers {
		h(e)
	}
}
