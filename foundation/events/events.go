// Package events fans ledger events out to websocket subscribers.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// messageBuffer is how many events a slow subscriber may fall behind before
// events are dropped for it.
const messageBuffer = 100

// Event is one ledger event as delivered to subscribers.
type Event struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// New builds an event from an event handler message. The kind is the
// leading "<component>:" prefix of the message.
func New(msg string) Event {
	kind, _, found := strings.Cut(msg, ":")
	if !found {
		kind = "ledger"
	}

	return Event{
		Kind:    kind,
		Message: msg,
		Time:    time.Now().UTC(),
	}
}

// =============================================================================

// Events maintains a mapping of subscriber id and channels so goroutines
// can register and receive events.
type Events struct {
	m  map[string]chan []byte
	mu sync.RWMutex
}

// NewEvents constructs an empty set of subscribers.
func NewEvents() *Events {
	return &Events{
		m: make(map[string]chan []byte),
	}
}

// Shutdown closes and removes every subscriber channel.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		delete(evt.m, id)
		close(ch)
	}
}

// Acquire returns the channel the subscriber id receives encoded events on.
func (evt *Events) Acquire(id string) <-chan []byte {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		ch = make(chan []byte, messageBuffer)
		evt.m[id] = ch
	}

	return ch
}

// Release closes and removes the subscriber channel.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(ch)
	return nil
}

// Subscribers returns the number of registered subscribers.
func (evt *Events) Subscribers() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.m)
}

// Send delivers the event to every subscriber as JSON. Send never blocks; a
// subscriber with a full buffer misses the event.
func (evt *Events) Send(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, ch := range evt.m {
		select {
		case ch <- data:
		default:
		}
	}

	return nil
}
