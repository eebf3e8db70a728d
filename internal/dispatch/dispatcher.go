// Package dispatch owns the bounded ingestion queue: admission and drop
// policy, the single persistence worker, live broadcast, and the
// flush/shutdown lifecycle.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opencode-ai/logvault/internal/event"
	"github.com/opencode-ai/logvault/internal/pubsub"
)

// Appender persists one event. A false return means the event is lost;
// the dispatcher never retries or surfaces it.
type Appender interface {
	Append(ctx context.Context, ev event.LogEvent) (*event.LogRecord, bool)
}

// Options configures a Dispatcher.
type Options struct {
	// QueueDepth bounds the pending queue. Values below 1 are raised to 1.
	QueueDepth int
	// Policy enables backpressure eviction and drop-summary reporting.
	// Nil means: a full queue drops the incoming event.
	Policy *event.DropPolicy
	// AppName stamps synthetic drop-summary events.
	AppName string
}

// Dispatcher admits events from any number of concurrent producers,
// persists them strictly FIFO through a single worker, and broadcasts each
// persisted record to live subscriptions in persist order.
//
// All mutable state lives behind one mutex; Enqueue never blocks beyond
// that short critical section.
type Dispatcher struct {
	appender Appender
	broker   *pubsub.Broker[event.LogRecord]
	policy   *event.DropPolicy
	depth    int
	appName  string

	mu         sync.Mutex
	queue      []event.LogEvent
	drops      map[event.Level]int64
	dropsTotal int64
	lastReport time.Time
	running    bool
	closed     bool
	waiters    []chan struct{}
}

func New(appender Appender, opts Options) *Dispatcher {
	depth := opts.QueueDepth
	if depth < 1 {
		depth = 1
	}
	return &Dispatcher{
		appender:   appender,
		broker:     pubsub.NewBroker[event.LogRecord](),
		policy:     opts.Policy,
		depth:      depth,
		appName:    opts.AppName,
		drops:      make(map[event.Level]int64),
		lastReport: time.Now(),
	}
}

// Enqueue admits ev, applying the drop policy when the queue is full, and
// wakes the persistence worker. It never blocks and is safe under any
// number of concurrent callers. Events arriving after Shutdown are
// discarded.
func (d *Dispatcher) Enqueue(ev event.LogEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.admitLocked(ev)
	d.reportLocked(false)
	d.startWorkerLocked()
}

// Flush emits a forced drop summary, then blocks until every pending event
// has been handed to storage. With nothing pending it returns immediately.
func (d *Dispatcher) Flush(ctx context.Context) error {
	d.mu.Lock()
	d.reportLocked(true)
	return d.awaitDrainLocked(ctx)
}

// Shutdown closes the dispatcher to new events, flushes the queue, and
// ends every live subscription. It is idempotent.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.reportLocked(true)
		d.closed = true
	}
	if err := d.awaitDrainLocked(ctx); err != nil {
		return err
	}
	d.broker.Shutdown()
	return nil
}

// Subscribe returns a live feed of every record persisted after this call,
// in persist order. The channel closes when ctx is cancelled or the
// dispatcher shuts down.
func (d *Dispatcher) Subscribe(ctx context.Context) <-chan event.LogRecord {
	return d.broker.Subscribe(ctx)
}

// Pending reports the number of queued, not-yet-persisted events.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Dropped reports per-level drop counts accumulated since the last summary.
func (d *Dispatcher) Dropped() map[event.Level]int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[event.Level]int64, len(d.drops))
	for l, n := range d.drops {
		out[l] = n
	}
	return out
}

// admitLocked applies the queue admission rules. Every drop, incoming or
// evicted, is counted against the dropped event's level.
func (d *Dispatcher) admitLocked(ev event.LogEvent) {
	if len(d.queue) >= d.depth {
		if d.policy == nil || ev.Level < d.policy.DropBelow {
			d.countDropLocked(ev.Level)
			return
		}
		// The incoming event outranks the threshold: evict the oldest
		// queued event, whatever its level, to admit it.
		d.countDropLocked(d.queue[0].Level)
		d.queue = d.queue[1:]
	}
	d.queue = append(d.queue, ev)
}

func (d *Dispatcher) countDropLocked(l event.Level) {
	d.drops[l]++
	d.dropsTotal++
}

// reportLocked emits a drop summary when one is due: always on force (the
// flush/shutdown path), otherwise only when a report interval is configured
// and has elapsed. The summary goes through normal admission, and counters
// reset so the next summary covers a fresh window.
func (d *Dispatcher) reportLocked(force bool) {
	if d.dropsTotal == 0 {
		if force {
			d.lastReport = time.Now()
		}
		return
	}
	if !force {
		if d.policy == nil || d.policy.ReportInterval <= 0 {
			return
		}
		if time.Since(d.lastReport) < d.policy.ReportInterval {
			return
		}
	}

	summary := d.summaryLocked()
	d.drops = make(map[event.Level]int64)
	d.dropsTotal = 0
	d.lastReport = time.Now()
	d.admitLocked(summary)
}

func (d *Dispatcher) summaryLocked() event.LogEvent {
	md := make(map[string]any, len(d.drops))
	for l, n := range d.drops {
		if n > 0 {
			md[l.String()] = n
		}
	}
	return event.LogEvent{
		Timestamp:    time.Now(),
		Level:        event.LevelWarning,
		Message:      fmt.Sprintf("dropped %d log events under backpressure", d.dropsTotal),
		Label:        "logvault",
		Tag:          "logvault",
		AppName:      d.appName,
		Source:       "dispatcher",
		Metadata:     md,
		MetadataJSON: event.EncodeMetadata(md),
	}
}

func (d *Dispatcher) startWorkerLocked() {
	if d.running || len(d.queue) == 0 {
		return
	}
	d.running = true
	go d.drain()
}

// awaitDrainLocked releases the mutex and waits until the queue is empty
// and the worker idle. The caller must hold d.mu.
func (d *Dispatcher) awaitDrainLocked(ctx context.Context) error {
	if len(d.queue) == 0 && !d.running {
		d.mu.Unlock()
		return nil
	}
	done := make(chan struct{})
	d.waiters = append(d.waiters, done)
	d.startWorkerLocked()
	d.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain is the persistence worker. Exactly one instance runs at a time; it
// pops strictly FIFO, appends, broadcasts successful appends in persist
// order, and exits once the queue is empty.
func (d *Dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.running = false
			for _, w := range d.waiters {
				close(w)
			}
			d.waiters = nil
			d.mu.Unlock()
			return
		}
		ev := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		if rec, ok := d.appender.Append(context.Background(), ev); ok {
			d.broker.Publish(*rec)
		}
	}
}
