package room

import (
	"sync"

	"github.com/kibitz-games/kibitz/internal/event"
)

// DefaultObserverBuffer is the per-observer channel capacity. An observer
// whose channel is full when an event arrives is dropped rather than
// allowed to stall the room.
const DefaultObserverBuffer = 32

// Observer is one attached spectator connection. Events are delivered in
// room order; the channel is closed when the observer is detached, dropped
// for falling behind, or the room is torn down.
type Observer struct {
	id int
	ch chan event.Event
}

// Events returns the observer's delivery channel.
func (o *Observer) Events() <-chan event.Event {
	return o.ch
}

// fanout manages attached observers. It has its own lock so attaching and
// detaching never queue behind request processing in the actor.
type fanout struct {
	mu        sync.Mutex
	nextID    int
	observers map[int]*Observer
	closed    bool
}

func newFanout() *fanout {
	return &fanout{observers: make(map[int]*Observer)}
}

func (f *fanout) attach(buffer int) *Observer {
	if buffer <= 0 {
		buffer = DefaultObserverBuffer
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	obs := &Observer{id: f.nextID, ch: make(chan event.Event, buffer)}
	if f.closed {
		close(obs.ch)
		return obs
	}
	f.observers[f.nextID] = obs
	return obs
}

func (f *fanout) detach(obs *Observer) {
	if obs == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.observers[obs.id]; ok {
		delete(f.observers, obs.id)
		close(obs.ch)
	}
}

// broadcast delivers evt to every observer, dropping any whose channel is
// full. Returns the number of observers dropped.
func (f *fanout) broadcast(evt event.Event) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	dropped := 0
	for id, obs := range f.observers {
		select {
		case obs.ch <- evt:
		default:
			delete(f.observers, id)
			close(obs.ch)
			dropped++
		}
	}
	return dropped
}

// closeAll evicts every observer and rejects future attaches.
func (f *fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, obs := range f.observers {
		delete(f.observers, id)
		close(obs.ch)
	}
}

func (f *fanout) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.observers)
}
