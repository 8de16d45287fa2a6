package session

import "sync"

// emitter delivers events in order on its own goroutine. emit never blocks.
type emitter struct {
	events Events

	mu     sync.Mutex
	queue  []func(Events)
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newEmitter(events Events) *emitter {
	if events == nil {
		events = NopEvents{}
	}
	e := &emitter{
		events: events,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *emitter) emit(fn func(Events)) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, fn)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// close stops accepting events. Queued ones are still delivered.
func (e *emitter) close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *emitter) run() {
	defer close(e.done)
	for {
		e.mu.Lock()
		batch := e.queue
		e.queue = nil
		closed := e.closed
		e.mu.Unlock()

		for _, fn := range batch {
			fn(e.events)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-e.wake
	}
}
