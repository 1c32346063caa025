package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mr1hm/go-weather-warnings/internal/models"
)

// Dispatcher fans transitions out to the notifier from a small pool of
// senders so slow delivery cannot stall the check tick. Delivery failures
// are logged and dropped; the core never retries.
type Dispatcher struct {
	numWorkers int
	jobs       chan models.Transition
	notifier   Notifier
	wg         sync.WaitGroup
}

func NewDispatcher(numWorkers, bufferSize int, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		numWorkers: numWorkers,
		jobs:       make(chan models.Transition, bufferSize),
		notifier:   notifier,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	for i := 1; i <= d.numWorkers; i++ {
		d.wg.Add(1)
		go d.sender(ctx)
	}
}

func (d *Dispatcher) sender(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-d.jobs:
			if !ok {
				return
			}
			if err := d.notifier.Notify(ctx, t); err != nil {
				slog.Error("notification delivery failed",
					"city", t.City, "warning", t.Warning, "error", err)
			}
		}
	}
}

// Submit queues a transition for delivery without blocking the caller.
// When the queue is full the transition is dropped and logged; delivery is
// already best-effort and a stalled queue must never wedge a tick or
// shutdown.
func (d *Dispatcher) Submit(t models.Transition) {
	select {
	case d.jobs <- t:
	default:
		slog.Warn("notification queue full, transition dropped",
			"city", t.City, "warning", t.Warning)
	}
}

func (d *Dispatcher) Stop() {
	close(d.jobs)
	d.wg.Wait()
}
