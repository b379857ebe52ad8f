package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/observability"
)

// DefaultQueueSize bounds the batches waiting for delivery.
const DefaultQueueSize = 256

var (
	// ErrQueueFull indicates events were dropped because delivery is behind.
	ErrQueueFull = errors.New("event queue full")
	// ErrDispatcherClosed indicates Publish was called after Close.
	ErrDispatcherClosed = errors.New("event dispatcher closed")
)

// Dispatcher queues committed events and delivers them from a background
// goroutine, so callers never wait on the broker.
type Dispatcher struct {
	next   timetable.EventPublisher
	logger *slog.Logger
	queue  chan []timetable.Event

	mu     sync.RWMutex
	closed bool

	shutdownComplete chan struct{}
}

// NewDispatcher wraps next. A non-positive size selects DefaultQueueSize.
func NewDispatcher(next timetable.EventPublisher, size int, logger *slog.Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		next:             next,
		logger:           logger,
		queue:            make(chan []timetable.Event, size),
		shutdownComplete: make(chan struct{}),
	}
}

// Publish enqueues evts without blocking. A full queue drops the batch.
func (d *Dispatcher) Publish(_ context.Context, evts ...timetable.Event) error {
	if len(evts) == 0 {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	batch := append([]timetable.Event(nil), evts...)
	select {
	case d.queue <- batch:
		return nil
	default:
		for _, evt := range evts {
			observability.RecordEventPublished(string(evt.Type), ErrQueueFull)
		}
		return ErrQueueFull
	}
}

// Start delivers queued batches until Close drains the queue or ctx is
// canceled. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.shutdownComplete)

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-d.queue:
			if !ok {
				return
			}
			// Delivery failures are logged and counted by the publisher.
			if err := d.next.Publish(ctx, batch...); err != nil {
				d.logger.Debug("event batch not delivered", "count", len(batch), "error", err)
			}
		}
	}
}

// Close stops accepting events. Start returns once the queue is drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.queue)
}

// Wait blocks until Start returns.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}
