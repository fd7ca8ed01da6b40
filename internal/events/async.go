package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/logger"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/metrics"
)

const (
	DefaultQueueSize      = 1024
	DefaultPublishTimeout = 10 * time.Second
)

var (
	ErrQueueFull = errors.New("ledger event queue is full")
	ErrClosed    = errors.New("ledger event publisher is closed")
)

// Async queues events for a background goroutine that forwards them to next,
// so a slow or unreachable broker never holds up a wallet operation. When the
// queue is full the batch is dropped and ErrQueueFull returned.
type Async struct {
	next    Publisher
	timeout time.Duration
	queue   chan []LedgerEvent
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsync(next Publisher, size int, timeout time.Duration) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	a := &Async{
		next:    next,
		timeout: timeout,
		queue:   make(chan []LedgerEvent, size),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish only enqueues. ctx is not retained: delivery runs under its own timeout.
func (a *Async) Publish(_ context.Context, events ...LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	batch := make([]LedgerEvent, len(events))
	copy(batch, events)
	select {
	case a.queue <- batch:
		return nil
	default:
		metrics.RecordLedgerEvents("dropped", len(batch))
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for batch := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.next.Publish(ctx, batch...)
		cancel()

		if err != nil {
			metrics.RecordLedgerEvents("failed", len(batch))
			logger.WithError(err).WithField("events", len(batch)).Warn("Ledger events not delivered")
			continue
		}
		metrics.RecordLedgerEvents("published", len(batch))
	}
}

// Close stops accepting events, waits for queued ones to be attempted and
// closes next.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	return a.next.Close()
}
