package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DispatcherConfig tunes the async delivery queue.
type DispatcherConfig struct {
	// BufferSize is the queue capacity. Values <= 0 become 1.
	BufferSize int
	// DropIfFull makes Dispatch non-blocking; messages that do not fit
	// are counted in Dropped instead of stalling the caller.
	DropIfFull bool
	// DeliveryTimeout bounds each NotifyOTP call. Zero means 30s.
	DeliveryTimeout time.Duration
}

// Dispatcher feeds queued OTP messages to a Notifier from a single
// worker goroutine. Close drains whatever is already queued before
// returning.
type Dispatcher struct {
	cfg       DispatcherConfig
	notifier  Notifier
	log       *zap.Logger
	ch        chan OTPMessage
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the worker. A nil logger falls back to zap.NewNop.
func NewDispatcher(cfg DispatcherConfig, notifier Notifier, log *zap.Logger) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	d := &Dispatcher{
		cfg:      cfg,
		notifier: notifier,
		log:      log,
		ch:       make(chan OTPMessage, cfg.BufferSize),
		done:     make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg OTPMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DeliveryTimeout)
	defer cancel()

	if err := d.notifier.NotifyOTP(ctx, msg); err != nil {
		d.log.Error("otp delivery failed",
			zap.String("email", msg.Email),
			zap.Error(err),
		)
	}
}

// Dispatch queues msg for delivery. With DropIfFull it never blocks;
// otherwise it waits until the queue accepts, ctx is done, or the
// dispatcher closes.
func (d *Dispatcher) Dispatch(ctx context.Context, msg OTPMessage) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- msg:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- msg:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close stops accepting new messages, drains the queue, and waits for
// the worker to exit. Safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many messages were discarded because the queue
// was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
