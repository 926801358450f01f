package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// Logger receives events the dispatcher could not deliver. Zero value
	// discards them.
	Logger zerolog.Logger
}

// Dispatcher asynchronously forwards audit events to a sink. A nil Dispatcher
// is valid and discards everything.
//
// An event that cannot be queued is not lost silently: it is counted in
// Dropped and written to the configured logger as "audit.dropped", sampled to
// a burst per second so a saturated sink cannot flood the log.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once

	dropLog  zerolog.Logger
	panicLog zerolog.Logger
}

const dropLogBurst = 10

// NewDispatcher starts the delivery goroutine. It returns nil when auditing is
// disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	logger := cfg.Logger.With().Str("component", "audit").Logger()
	d := &Dispatcher{
		cfg:      cfg,
		sink:     sink,
		ch:       make(chan Event, cfg.BufferSize),
		done:     make(chan struct{}),
		dropLog:  logger.Sample(&zerolog.BurstSampler{Burst: dropLogBurst, Period: time.Second}),
		panicLog: logger,
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			// drain what is already buffered
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

// deliver isolates the delivery goroutine from a panicking sink.
func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.dropped.Add(1)
			d.panicLog.Error().
				Interface("panic", r).
				Str("event", event.EventType).
				Str("subject", event.SubjectID).
				Msg("audit.sink_panic")
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit enqueues event. With DropIfFull a full buffer drops the event;
// otherwise Emit blocks until there is room, and drops the event if ctx ends
// first.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.drop(event, "buffer_full")
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.drop(event, "context_done")
	case <-d.done:
	}
}

func (d *Dispatcher) drop(event Event, reason string) {
	total := d.dropped.Add(1)
	ev := d.dropLog.Warn().
		Str("reason", reason).
		Str("event", event.EventType).
		Bool("success", event.Success).
		Uint64("dropped_total", total)
	if event.SubjectID != "" {
		ev = ev.Str("subject", event.SubjectID)
	}
	if event.IP != "" {
		ev = ev.Str("ip", event.IP)
	}
	ev.Msg("audit.dropped")
}

// Close stops accepting events, flushes the buffer and waits for delivery.
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

// Dropped counts events that were not delivered.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
