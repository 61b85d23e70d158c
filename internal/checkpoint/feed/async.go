package feed

import (
	"context"
	"errors"
	"time"

	"truckgate/internal/checkpoint/models"
)

// ErrQueueFull is returned when the dispatch queue cannot take another entry.
var ErrQueueFull = errors.New("feed queue full")

const publishTimeout = 5 * time.Second

// Async queues entries and publishes them from Run, so a slow sink never
// holds up a validation.
type Async struct {
	next    Publisher
	inbox   chan models.LogEntry
	onError func(error)
}

// NewAsync buffers up to size entries. onError sees every downstream failure.
func NewAsync(next Publisher, size int, onError func(error)) *Async {
	if size <= 0 {
		size = 1
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Async{
		next:    next,
		inbox:   make(chan models.LogEntry, size),
		onError: onError,
	}
}

// Publish enqueues entry without blocking.
func (a *Async) Publish(_ context.Context, entry models.LogEntry) error {
	select {
	case a.inbox <- entry:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run publishes queued entries until ctx is done, then flushes what is left.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.drain()
			return nil
		case entry := <-a.inbox:
			a.deliver(ctx, entry)
		}
	}
}

func (a *Async) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	for {
		select {
		case entry := <-a.inbox:
			a.deliver(ctx, entry)
		default:
			return
		}
	}
}

func (a *Async) deliver(ctx context.Context, entry models.LogEntry) {
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := a.next.Publish(pctx, entry); err != nil {
		a.onError(err)
	}
}

// Pending is the number of queued entries.
func (a *Async) Pending() int {
	return len(a.inbox)
}

func (a *Async) Close() error {
	return a.next.Close()
}
