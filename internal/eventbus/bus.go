// Package eventbus implements the single ordered dispatch queue that
// carries every broker callback from its adapter to the OMS cache, the RPC
// publisher, and any other subscriber.
package eventbus

import (
	"sync"
	"time"

	"janus/internal/logs"
	"janus/internal/models"

	"github.com/rs/zerolog"
)

// Subscriber receives dispatched events. Implementations must not mutate
// the event or any payload it points to.
type Subscriber func(models.Event)

// Metrics tracks bus activity for observability, mirroring the counters a
// subscriber dashboard would want to chart.
type Metrics struct {
	mu        sync.Mutex
	Published uint64
	Dispatched uint64
	TicksDropped uint64
}

func (m *Metrics) recordPublish() {
	m.mu.Lock()
	m.Published++
	m.mu.Unlock()
}

func (m *Metrics) recordDispatch() {
	m.mu.Lock()
	m.Dispatched++
	m.mu.Unlock()
}

func (m *Metrics) recordTickDrop() {
	m.mu.Lock()
	m.TicksDropped++
	m.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Metrics{Published: m.Published, Dispatched: m.Dispatched, TicksDropped: m.TicksDropped}
}

const (
	defaultMaxTickQueue  = 4096
	defaultBackpressureAt = 8192
	defaultTimerInterval = time.Second
)

// Bus is the single ordered event queue. One worker goroutine drains it and
// dispatches to type-keyed and generic subscribers, in enqueue order.
//
// The queue is a plain slice guarded by a mutex rather than a fixed-size
// channel: TICK events are bounded with drop-oldest overflow, but every
// other event kind must never be dropped, which a single fixed-capacity
// channel cannot express without dropping across kinds indiscriminately.
type Bus struct {
	log zerolog.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []models.Event
	ticksInQ  int
	running   bool

	maxTickQueue   int
	backpressureAt int

	subMu    sync.RWMutex
	byType   map[models.EventType][]Subscriber
	generic  []Subscriber

	metrics Metrics

	timerInterval time.Duration
	stopTimer     chan struct{}
	timerDone     chan struct{}

	workerDone chan struct{}
}

// New creates a Bus with default bound/backpressure thresholds.
func New(log zerolog.Logger) *Bus {
	b := &Bus{
		log:            log,
		byType:         make(map[models.EventType][]Subscriber),
		maxTickQueue:   defaultMaxTickQueue,
		backpressureAt: defaultBackpressureAt,
		timerInterval:  defaultTimerInterval,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Subscribe registers fn for events of exactly eventType.
func (b *Bus) Subscribe(eventType models.EventType, fn Subscriber) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.byType[eventType] = append(b.byType[eventType], fn)
}

// SubscribeAll registers fn for every event type.
func (b *Bus) SubscribeAll(fn Subscriber) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.generic = append(b.generic, fn)
}

// Start spawns the dispatch worker and the timer source.
func (b *Bus) Start() {
	b.mu.Lock()
	b.running = true
	b.mu.Unlock()

	b.workerDone = make(chan struct{})
	go b.runWorker()

	b.stopTimer = make(chan struct{})
	b.timerDone = make(chan struct{})
	go b.runTimer()
}

// Stop drains the queue then joins the worker and timer. Callers must stop
// the bus before closing any gateway whose callbacks still feed it.
func (b *Bus) Stop() {
	close(b.stopTimer)
	<-b.timerDone

	b.mu.Lock()
	b.running = false
	b.cond.Broadcast()
	b.mu.Unlock()

	<-b.workerDone
}

// Publish enqueues ev without blocking the caller. TICK events are subject
// to bounded drop-oldest; every other kind is queued unconditionally.
func (b *Bus) Publish(ev models.Event) {
	b.mu.Lock()
	if ev.Type == models.EventTick && b.ticksInQ >= b.maxTickQueue {
		b.dropOldestTickLocked()
	}
	b.queue = append(b.queue, ev)
	if ev.Type == models.EventTick {
		b.ticksInQ++
	}
	qlen := len(b.queue)
	b.cond.Signal()
	b.mu.Unlock()

	b.metrics.recordPublish()

	if ev.Type != models.EventTick && qlen >= b.backpressureAt {
		b.log.Warn().Int("queue_len", qlen).Str("event_type", string(ev.Type)).
			Msg("event bus backpressure: queue growing past threshold")
	}
}

// dropOldestTickLocked removes the oldest TICK event from the queue. Caller
// must hold b.mu.
func (b *Bus) dropOldestTickLocked() {
	for i, ev := range b.queue {
		if ev.Type == models.EventTick {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			b.ticksInQ--
			b.metrics.recordTickDrop()
			return
		}
	}
}

func (b *Bus) runWorker() {
	defer close(b.workerDone)
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && b.running {
			b.cond.Wait()
		}
		if len(b.queue) == 0 && !b.running {
			b.mu.Unlock()
			return
		}
		ev := b.queue[0]
		b.queue = b.queue[1:]
		if ev.Type == models.EventTick {
			b.ticksInQ--
		}
		b.mu.Unlock()

		b.dispatch(ev)
	}
}

func (b *Bus) dispatch(ev models.Event) {
	b.subMu.RLock()
	specific := b.byType[ev.Type]
	generic := b.generic
	b.subMu.RUnlock()

	for _, fn := range specific {
		fn(ev)
	}
	for _, fn := range generic {
		fn(ev)
	}
	b.metrics.recordDispatch()
}

func (b *Bus) runTimer() {
	defer close(b.timerDone)
	ticker := time.NewTicker(b.timerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.Publish(models.NewTimerEvent())
		case <-b.stopTimer:
			return
		}
	}
}

// MetricsSnapshot returns a snapshot of the bus's activity counters.
func (b *Bus) MetricsSnapshot() Metrics {
	return b.metrics.Snapshot()
}

// Log publishes a LOG event, letting RPC subscribers tail server activity
// the same way they tail market data.
func (b *Bus) Log(level, gateway, message string) {
	b.Publish(models.NewLogEvent(level, gateway, message))
	entry := logs.WithGateway(b.log, gateway)
	switch level {
	case "warn":
		entry.Warn().Msg(message)
	case "error":
		entry.Error().Msg(message)
	default:
		entry.Info().Msg(message)
	}
}
