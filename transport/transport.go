// Package transport provides the synchronous request/reply channel the client talks over.
//
// A Channel strictly alternates: exactly one Receive follows every Send.
// Implementations reject out-of-order use instead of touching the wire.
package transport

import (
	"sync"

	"github.com/pnnl/chgl/model"
)

// Channel is a single synchronous request/reply connection.
type Channel interface {
	// Send transmits exactly one request.
	// Calling Send again before the matching Receive completes is an error.
	Send(msg []byte) error
	// Receive blocks until exactly one reply arrives.
	Receive() ([]byte, error)
	// Close terminates the channel; a blocked Receive is unblocked with an error.
	Close() error
}

// Alternation tracks the send/receive turn of a request/reply channel.
// It is embedded by Channel implementations.
type Alternation struct {
	mu       sync.Mutex
	awaiting bool
	closed   bool
}

// BeginSend claims the send turn.
func (a *Alternation) BeginSend() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return model.NewError(model.ErrConnection, "send: channel closed")
	}
	if a.awaiting {
		return model.NewError(model.ErrProtocol, "send: previous reply still outstanding")
	}
	a.awaiting = true

	return nil
}

// AbortSend gives the send turn back when the request never left.
func (a *Alternation) AbortSend() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.awaiting = false
}

// BeginReceive checks that a reply is outstanding.
func (a *Alternation) BeginReceive() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return model.NewError(model.ErrConnection, "receive: channel closed")
	}
	if !a.awaiting {
		return model.NewError(model.ErrProtocol, "receive: no request outstanding")
	}

	return nil
}

// EndReceive completes the request/reply cycle.
func (a *Alternation) EndReceive() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.awaiting = false
}

// MarkClosed marks the channel closed; it reports false if it already was.
func (a *Alternation) MarkClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return false
	}
	a.closed = true

	return true
}

// Awaiting reports whether a reply is outstanding.
func (a *Alternation) Awaiting() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.awaiting
}
