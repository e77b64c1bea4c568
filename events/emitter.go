package events

import (
	"sync"
	"time"
)

// Observer receives every event the engine emits. Implementations must be
// fast or hand off to their own goroutine; Emit calls them inline.
type Observer interface {
	OnEvent(event *Event)
}

// Emitter fans events out to registered observers.
type Emitter struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEmitter creates an emitter with no observers. It is safe to share
// across goroutines.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// AddObserver registers an observer for all subsequent events.
func (e *Emitter) AddObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// Emit builds an event around the payload and delivers it to every
// observer. A nil Emitter is valid and drops everything, so callers never
// need to guard emission sites.
func (e *Emitter) Emit(roundID string, data EventData) {
	if e == nil {
		return
	}
	event := &Event{
		ID:        GenerateEventID(),
		Type:      data.EventDataType(),
		Timestamp: time.Now(),
		RoundID:   roundID,
		Data:      data,
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, o := range e.observers {
		o.OnEvent(event)
	}
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(event *Event)

func (f ObserverFunc) OnEvent(event *Event) { f(event) }
