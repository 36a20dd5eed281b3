package orchestrator

import (
	"log"
	"sync/atomic"
	"time"
)

// EventEmitter delivers events to a single subscriber over a buffered channel.
// A nil *EventEmitter discards everything.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event to the events channel.
// If the channel is full, it tries with a timeout before dropping the event.
func (e *EventEmitter) Emit(event Event) {
	if e == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // Log every 10th drop to avoid spam
			log.Printf("[dispatch] WARNING: Event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	if e == nil {
		return 0
	}
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. Emit must not be called afterwards.
func (e *EventEmitter) Close() {
	if e == nil {
		return
	}
	close(e.events)
}
