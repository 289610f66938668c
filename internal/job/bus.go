package job

import (
	"fmt"
	"log/slog"
	"sync"

	"amequeue/internal/logging"
	"amequeue/internal/services/ame"
)

// Observer receives job events.
type Observer func(Event)

type subscription struct {
	id uint64
	fn Observer
}

type delivery struct {
	event     Event
	observers []subscription
	kind      string
}

// Bus is a job's progress event bus. It suppresses progress events whose
// job status, progress and lifecycle triple did not change, and delivers
// events on a dispatcher goroutine in publication order.
type Bus struct {
	logger *slog.Logger

	mu       sync.Mutex
	nextID   uint64
	progress []subscription
	end      []subscription
	last     *progressKey
	final    *Event
	queue    []delivery
	running  bool
	idle     chan struct{}
}

type progressKey struct {
	jobStatus   ame.JobStatus
	progress    float64
	hasProgress bool
	lifecycle   Lifecycle
}

// NewBus constructs an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{logger: logger}
}

// OnProgress registers fn for progress events and returns a function that
// removes it.
func (b *Bus) OnProgress(fn Observer) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.progress = append(b.progress, subscription{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.progress = remove(b.progress, id)
	}
}

// OnEnd registers fn for the end-of-life event. If the job already ended the
// event is delivered to fn alone, once.
func (b *Bus) OnEnd(fn Observer) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.final != nil {
		b.enqueueLocked(delivery{event: cloneEvent(*b.final), observers: []subscription{{fn: fn}}, kind: "end"})
		return
	}
	b.nextID++
	b.end = append(b.end, subscription{id: b.nextID, fn: fn})
}

// Publish emits ev to progress observers when its triple differs from the
// previous emission or force is set. It reports whether the event was emitted.
func (b *Bus) Publish(ev Event, force bool) bool {
	key := progressKey{
		jobStatus:   ev.JobStatus,
		progress:    ev.Progress,
		hasProgress: ev.HasProgress,
		lifecycle:   ev.Lifecycle,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.final != nil {
		return false
	}
	if !force && b.last != nil && *b.last == key {
		return false
	}
	b.last = &key
	b.enqueueLocked(delivery{event: ev, observers: append([]subscription(nil), b.progress...), kind: "progress"})
	return true
}

// End emits the end-of-life event. Only the first call has an effect.
func (b *Bus) End(ev Event) {
	ev.Final = true
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.final != nil {
		return
	}
	b.final = &ev
	observers := b.end
	b.end = nil
	b.enqueueLocked(delivery{event: ev, observers: observers, kind: "end"})
}

// Flush blocks until every queued delivery has run.
func (b *Bus) Flush() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	if b.idle == nil {
		b.idle = make(chan struct{})
	}
	idle := b.idle
	b.mu.Unlock()
	<-idle
}

func (b *Bus) enqueueLocked(d delivery) {
	if len(d.observers) == 0 {
		return
	}
	b.queue = append(b.queue, d)
	if !b.running {
		b.running = true
		go b.dispatch()
	}
}

func (b *Bus) dispatch() {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.running = false
			if b.idle != nil {
				close(b.idle)
				b.idle = nil
			}
			b.mu.Unlock()
			return
		}
		d := b.queue[0]
		b.queue[0] = delivery{}
		b.queue = b.queue[1:]
		b.mu.Unlock()

		for _, sub := range d.observers {
			b.deliver(d.kind, sub.fn, cloneEvent(d.event))
		}
	}
}

func (b *Bus) deliver(kind string, fn Observer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(b.logger, "job observer panicked", "observer_panic",
				logging.String("event", kind),
				logging.String(logging.FieldJobID, ev.JobID),
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldImpact, "observer skipped for this event"),
			)
		}
	}()
	fn(ev)
}

func cloneEvent(ev Event) Event {
	if ev.Snapshot != nil {
		snap := ev.Snapshot.Clone()
		ev.Snapshot = &snap
	}
	return ev
}

func remove(subs []subscription, id uint64) []subscription {
	out := subs[:0]
	for _, sub := range subs {
		if sub.id != id {
			out = append(out, sub)
		}
	}
	return out
}
