package authgate

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher hands events to the sink from a single worker
// goroutine so audit IO never runs on the request path. The queue is a
// buffered channel that Close closes; the worker drains it to the end
// before exiting, so nothing accepted before Close is lost.
type auditDispatcher struct {
	sink       AuditSink
	dropIfFull bool

	// mu guards queue against send-after-close. Emit holds the read
	// lock across its send; Close takes the write lock, so it cannot
	// close the channel under an in-flight send.
	mu     sync.RWMutex
	closed bool
	queue  chan AuditEvent

	workerDone chan struct{}
	dropped    atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}

	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan AuditEvent, buffer),
		workerDone: make(chan struct{}),
	}

	go d.drain()

	return d
}

func (d *auditDispatcher) drain() {
	defer close(d.workerDone)

	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit queues event for the sink. After Close it is a no-op. With
// DropIfFull a full queue increments the drop counter instead of
// blocking; otherwise Emit waits for queue space or ctx cancellation.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	}
}

// Close stops intake, waits for the worker to finish the queued
// backlog, and returns. Safe to call more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.workerDone
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
