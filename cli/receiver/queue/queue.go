package queue

/*
Bounded FIFO queues between the connection handlers, the processing loop and
the notifier. Capacities are fixed at construction and never change; a full
queue blocks the producer, which is the admission-control point of the whole
pipeline. Every blocking call takes a context so shutdown can unblock it.
*/

import (
	"context"

	"github.com/alitagps/tk103/cli/receiver/types"
)

// Requests carries raw protocol frames from connection handlers to the
// processing loop.
type Requests struct {
	ch chan string
}

func NewRequests(capacity int) *Requests {
	return &Requests{ch: make(chan string, capacity)}
}

// Put blocks while the queue is full.
func (q *Requests) Put(ctx context.Context, frame string) error {
	select {
	case q.ch <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Take blocks while the queue is empty.
func (q *Requests) Take(ctx context.Context) (string, error) {
	select {
	case frame := <-q.ch:
		return frame, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (q *Requests) Len() int { return len(q.ch) }
func (q *Requests) Cap() int { return cap(q.ch) }

// Events carries system messages to the notifier.
type Events struct {
	ch chan types.Message
}

func NewEvents(capacity int) *Events {
	return &Events{ch: make(chan types.Message, capacity)}
}

func (q *Events) Put(ctx context.Context, m types.Message) error {
	select {
	case q.ch <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Events) Take(ctx context.Context) (types.Message, error) {
	select {
	case m := <-q.ch:
		return m, nil
	case <-ctx.Done():
		return types.Message{}, ctx.Err()
	}
}

func (q *Events) Len() int { return len(q.ch) }
func (q *Events) Cap() int { return cap(q.ch) }
