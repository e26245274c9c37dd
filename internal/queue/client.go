package queue

import (
	"context"
	"errors"
	"time"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Receiver pulls raw message bodies from a queue backend.
// Receive blocks up to wait and returns ok=false when nothing arrived.
type Receiver interface {
	Receive(ctx context.Context, wait time.Duration) (body string, ok bool, err error)
}

// ErrClosed is returned by a queue that has been shut down.
var ErrClosed = errors.New("queue closed")
