// Package session tracks connected players: their identifiers, push channels,
// and the room each one currently occupies.
package session

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrChannelClosed is returned by Push after Close.
	ErrChannelClosed = errors.New("push channel closed")
	// ErrChannelFull is returned by Push when the event buffer has no room.
	ErrChannelFull = errors.New("push channel buffer full")
)

// PushChannel is a bounded, non-blocking event queue feeding one push stream.
// A transport goroutine drains Events and writes each payload to the client.
type PushChannel struct {
	sessionID int64
	events    chan []byte
	mu        sync.Mutex
	closed    bool
}

// NewPushChannel creates a PushChannel for the given session.
//
// Precondition: sessionID must be >= 1.
// Postcondition: Returns a PushChannel with an open events channel.
func NewPushChannel(sessionID int64, bufferSize int) *PushChannel {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &PushChannel{
		sessionID: sessionID,
		events:    make(chan []byte, bufferSize),
	}
}

// SessionID returns the owning session's identifier.
func (c *PushChannel) SessionID() int64 {
	return c.sessionID
}

// Push enqueues data without blocking.
//
// Precondition: data must be a non-nil byte slice.
// Postcondition: Data is enqueued, or ErrChannelClosed / ErrChannelFull is returned.
func (c *PushChannel) Push(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("session %d: %w", c.sessionID, ErrChannelClosed)
	}
	select {
	case c.events <- data:
		return nil
	default:
		return fmt.Errorf("session %d: %w", c.sessionID, ErrChannelFull)
	}
}

// Events returns the read-only events channel. It is closed by Close.
func (c *PushChannel) Events() <-chan []byte {
	return c.events
}

// Close marks the channel closed and closes the events channel.
//
// Postcondition: The events channel is closed. Further Push calls return ErrChannelClosed.
func (c *PushChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

// IsClosed reports whether the channel has been closed.
func (c *PushChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
