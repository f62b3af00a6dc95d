package eventbus

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"janus/internal/models"
)

func newTestBus() *Bus {
	b := New(zerolog.Nop())
	b.timerInterval = time.Hour // keep timer ticks out of these tests
	return b
}

func TestSubscribe_ReceivesOnlyMatchingType(t *testing.T) {
	b := newTestBus()
	b.Start()
	defer b.Stop()

	var orders, ticks int32
	var wg sync.WaitGroup
	wg.Add(2)

	b.Subscribe(models.EventOrder, func(ev models.Event) {
		atomic.AddInt32(&orders, 1)
		wg.Done()
	})
	b.Subscribe(models.EventTick, func(ev models.Event) {
		atomic.AddInt32(&ticks, 1)
		wg.Done()
	})

	b.Publish(models.NewOrderEvent(models.OrderData{VtOrderID: "a.1"}))
	b.Publish(models.NewTickEvent(models.TickData{Symbol: "AAPL"}))

	wg.Wait()
	if orders != 1 || ticks != 1 {
		t.Fatalf("got orders=%d ticks=%d, want 1 and 1", orders, ticks)
	}
}

func TestPublish_PreservesFIFOPerType(t *testing.T) {
	b := newTestBus()
	b.Start()
	defer b.Stop()

	var mu sync.Mutex
	var seen []string
	done := make(chan struct{})

	b.Subscribe(models.EventOrder, func(ev models.Event) {
		mu.Lock()
		seen = append(seen, ev.Order.VtOrderID)
		if len(seen) == 5 {
			close(done)
		}
		mu.Unlock()
	})

	for i := 0; i < 5; i++ {
		b.Publish(models.NewOrderEvent(models.OrderData{VtOrderID: string(rune('a' + i))}))
	}

	<-done
	for i, id := range seen {
		want := string(rune('a' + i))
		if id != want {
			t.Fatalf("dispatch order broken at %d: got %s want %s", i, id, want)
		}
	}
}

func TestPublish_DropsOldestTickOnOverflow(t *testing.T) {
	b := newTestBus()
	b.maxTickQueue = 4
	// Do not start the worker, so the queue accumulates deterministically.

	for i := 0; i < 10; i++ {
		b.Publish(models.NewTickEvent(models.TickData{Symbol: string(rune('a' + i))}))
	}

	b.mu.Lock()
	qlen := len(b.queue)
	b.mu.Unlock()

	if qlen != b.maxTickQueue {
		t.Fatalf("expected queue to stay bounded at %d ticks, got %d", b.maxTickQueue, qlen)
	}

	snap := b.MetricsSnapshot()
	if snap.TicksDropped != 6 {
		t.Fatalf("expected 6 dropped ticks, got %d", snap.TicksDropped)
	}

	// Surviving ticks must be the most recent ones, oldest-first.
	b.mu.Lock()
	first := b.queue[0].Tick.Symbol
	b.mu.Unlock()
	if first != "g" {
		t.Fatalf("expected oldest surviving tick to be 'g', got %q", first)
	}
}

func TestPublish_NeverDropsNonTickEvents(t *testing.T) {
	b := newTestBus()
	b.maxTickQueue = 2

	for i := 0; i < 50; i++ {
		b.Publish(models.NewOrderEvent(models.OrderData{VtOrderID: "x"}))
	}

	b.mu.Lock()
	qlen := len(b.queue)
	b.mu.Unlock()

	if qlen != 50 {
		t.Fatalf("expected all 50 order events retained, got %d", qlen)
	}
}

// Property: across a random interleaving of TICK and ORDER publishes, the
// number of queued ticks never exceeds maxTickQueue while every ORDER event
// survives until dispatch.
func TestProperty_BoundedTicksUnboundedOthers(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 30; trial++ {
		b := newTestBus()
		b.maxTickQueue = 8

		orderCount := 0
		n := rng.Intn(200) + 1
		for i := 0; i < n; i++ {
			if rng.Intn(2) == 0 {
				b.Publish(models.NewTickEvent(models.TickData{Symbol: "X"}))
			} else {
				b.Publish(models.NewOrderEvent(models.OrderData{VtOrderID: "x"}))
				orderCount++
			}
		}

		b.mu.Lock()
		ticksInQ := b.ticksInQ
		var ordersInQ int
		for _, ev := range b.queue {
			if ev.Type == models.EventOrder {
				ordersInQ++
			}
		}
		b.mu.Unlock()

		if ticksInQ > b.maxTickQueue {
			t.Fatalf("trial %d: tick queue exceeded bound: %d > %d", trial, ticksInQ, b.maxTickQueue)
		}
		if ordersInQ != orderCount {
			t.Fatalf("trial %d: expected all %d orders retained, found %d", trial, orderCount, ordersInQ)
		}
	}
}
