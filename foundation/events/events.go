// Package events allows for the registering and receiving of events.
package events

import (
	"fmt"
	"sync"
)

// messageBuffer is the number of events a subscriber can fall behind
// before events are dropped for it. A websocket send could take long.
const messageBuffer = 100

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive events.
type Events struct {
	mu      sync.RWMutex
	m       map[string]chan string
	dropped map[string]int
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		m:       make(map[string]chan string),
		dropped: make(map[string]int),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		delete(evt.m, id)
		delete(evt.dropped, id)
		close(ch)
	}
}

// Acquire takes a unique id and returns a channel that can be used
// to receive events.
func (evt *Events) Acquire(id string) <-chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if exists {
		return ch
	}

	ch = make(chan string, messageBuffer)
	evt.m[id] = ch
	return ch
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	delete(evt.dropped, id)
	close(ch)
	return nil
}

// Subscribers returns the number of registered channels.
func (evt *Events) Subscribers() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.m)
}

// Dropped returns how many events the subscriber missed because its
// channel was full.
func (evt *Events) Dropped(id string) int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return evt.dropped[id]
}

// Send signals a message to every registered channel. Send will not block
// waiting for a receiver on any given channel.
func (evt *Events) Send(s string) {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		select {
		case ch <- s:
		default:
			evt.dropped[id]++
		}
	}
}
