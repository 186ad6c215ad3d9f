package domain

import "sync"

// Dispatcher delivers command notifications (callbacks and event handlers)
// off the command path. Commands mutate state synchronously and enqueue
// their notifications; the dispatcher drains them in order on its own
// goroutine, so a command method always returns before any callback fires.
type Dispatcher interface {
	Dispatch(fn func())
	Close()
}

type serialDispatcher struct {
	mu     sync.Mutex
	tasks  chan func()
	closed bool
}

// NewSerialDispatcher returns the default single-goroutine dispatcher.
// Tasks run in enqueue order.
func NewSerialDispatcher() Dispatcher {
	d := &serialDispatcher{tasks: make(chan func(), 64)}
	go d.loop()
	return d
}

func (d *serialDispatcher) loop() {
	for fn := range d.tasks {
		fn()
	}
}

func (d *serialDispatcher) Dispatch(fn func()) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		// The owning auction was destroyed; keep the asynchronous contract
		// for the final error callbacks without reviving the queue.
		go fn()
		return
	}
	d.tasks <- fn
}

func (d *serialDispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.tasks)
}
