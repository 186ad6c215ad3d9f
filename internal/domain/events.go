package domain

import "sync"

// Event identifies a lifecycle notification emitted by an Auction.
type Event string

const (
	EventError   Event = "error"
	EventStarted Event = "started"
	EventChanged Event = "changed"
	EventEnded   Event = "ended"
)

// EventHandler receives the event payload: the auction data snapshot for
// started/changed/ended, the error value for error.
type EventHandler func(payload interface{})

// emitter is the auction's in-process observable. Registration is explicit
// per event kind; dispatch happens through the auction's dispatcher so
// handlers never run inside the triggering command call.
type emitter struct {
	mu       sync.RWMutex
	handlers map[Event][]EventHandler
}

func (e *emitter) on(event Event, handler EventHandler) {
	if handler == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[Event][]EventHandler)
	}
	e.handlers[event] = append(e.handlers[event], handler)
}

func (e *emitter) snapshot(event Event) []EventHandler {
	e.mu.RLock()
	defer e.mu.RUnlock()
	registered := e.handlers[event]
	if len(registered) == 0 {
		return nil
	}
	out := make([]EventHandler, len(registered))
	copy(out, registered)
	return out
}

func (e *emitter) removeAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = nil
}
