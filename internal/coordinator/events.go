package coordinator

import (
	"sync"

	"github.com/kozaktomas/selfie-finder/internal/constants"
)

// Event types.
const (
	EventState    = "state"
	EventProgress = "progress"
)

// Event is a state change broadcast to listeners.
type Event struct {
	Type  string       `json:"type"`
	State GalleryState `json:"state"`
}

// broadcaster provides listener management for state events.
type broadcaster struct {
	listeners []chan Event
	mu        sync.RWMutex
}

// Subscribe adds an event listener.
func (b *broadcaster) Subscribe() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// Unsubscribe removes an event listener and closes its channel.
func (b *broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

func (b *broadcaster) publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}
