package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

const (
	DefaultQueueSize    = 256
	DefaultSinkTimeout  = 10 * time.Second
	DefaultDrainTimeout = 5 * time.Second
)

// Dispatcher hands events to a sink on a single background worker, so the
// poll loop never waits on I/O. Events are delivered in submission order,
// at most once. When the queue is full the oldest event is dropped.
type Dispatcher struct {
	sink    domain.EventSink
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	queue   chan domain.ActivityEvent
	closed  bool
	dropped int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher starts a dispatcher worker.
func NewDispatcher(sink domain.EventSink, size int, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultSinkTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sink:    sink,
		timeout: timeout,
		logger:  logger,
		queue:   make(chan domain.ActivityEvent, size),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go d.work()
	return d
}

// Submit enqueues an event without blocking.
func (d *Dispatcher) Submit(ev domain.ActivityEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.logger.Warn("dispatcher closed, dropping event", zap.String("event_id", ev.ID))
		return
	}

	for {
		select {
		case d.queue <- ev:
			return
		default:
		}
		select {
		case old := <-d.queue:
			d.dropped++
			d.logger.Warn("event queue full, dropping oldest",
				zap.String("event_id", old.ID),
				zap.String("app", old.AppName))
		default:
		}
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Close stops accepting events and waits up to timeout for the queue to drain.
func (d *Dispatcher) Close(timeout time.Duration) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-d.done:
		d.cancel()
		return nil
	case <-timer.C:
		pending := len(d.queue)
		d.cancel()
		<-d.done
		return fmt.Errorf("drain timed out after %s, %d events undelivered", timeout, pending)
	}
}

func (d *Dispatcher) work() {
	defer close(d.done)

	for ev := range d.queue {
		if d.ctx.Err() != nil {
			continue
		}
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev domain.ActivityEvent) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	if err := d.sink.Record(ctx, ev); err != nil {
		d.logger.Warn("failed to record event, dropping",
			zap.String("event_id", ev.ID),
			zap.String("app", ev.AppName),
			zap.Int("duration_s", ev.DurationSeconds),
			zap.Error(err))
		return
	}
	d.logger.Debug("event recorded", zap.String("event_id", ev.ID))
}
