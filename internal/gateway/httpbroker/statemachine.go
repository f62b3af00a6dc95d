package httpbroker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"janus/internal/config"
	"janus/internal/gateway/httpbroker/tradeeventspb"
)

// tradeEventsState is one state of the per-account streaming state machine documented for the trade-events subscription.
type tradeEventsState int

const (
	stateIdle tradeEventsState = iota
	stateConnecting
	stateSubscribed
	stateReconnectWait
	stateStopped
)

const (
	baseBackoff = time.Second
	maxBackoff  = 30 * time.Second
)

// tradeEventsManager owns one dedicated streaming goroutine per account
// that subscribes to the gRPC trade-events feed and feeds order lifecycle
// payloads back into the adapter's onOrderTradeEvent. Each Adapter creates
// its own manager on Connect; managers are not shared between accounts,
// even when their credentials coincide.
type tradeEventsManager struct {
	adapter *Adapter
	cfg     config.AccountConfig

	mu    sync.Mutex
	state tradeEventsState

	stopCh chan struct{}
	done   chan struct{}
}

func newTradeEventsManager(a *Adapter, cfg config.AccountConfig) *tradeEventsManager {
	return &tradeEventsManager{
		adapter: a,
		cfg:     cfg,
		state:   stateIdle,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (m *tradeEventsManager) start() {
	go m.run()
}

func (m *tradeEventsManager) stop() {
	m.setState(stateStopped)
	close(m.stopCh)
	<-m.done
}

func (m *tradeEventsManager) setState(s tradeEventsState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *tradeEventsManager) currentState() tradeEventsState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *tradeEventsManager) run() {
	defer close(m.done)

	attempt := 0
	for {
		if m.currentState() == stateStopped {
			return
		}

		m.setState(stateConnecting)
		err := m.connectAndStream()
		if m.currentState() == stateStopped {
			return
		}
		if err == nil {
			// Stream ended cleanly (server closed it); restart from the
			// top without treating it as a backoff-worthy failure.
			attempt = 0
			continue
		}

		m.setState(stateReconnectWait)
		delay := backoffWithJitter(attempt)
		attempt++
		m.adapter.log.Warn().Err(err).Dur("backoff", delay).Msg("trade events stream disconnected, reconnecting")

		select {
		case <-time.After(delay):
		case <-m.stopCh:
			return
		}
	}
}

// connectAndStream dials once, subscribes, and drains the stream until it
// errors or the manager is stopped. A nil return means a clean close.
func (m *tradeEventsManager) connectAndStream() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-m.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	conn, err := grpc.NewClient(m.cfg.TradeEvents.Host, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	client := tradeeventspb.NewTradeEventsClient(conn)
	stream, err := client.Subscribe(ctx, &tradeeventspb.SubscribeRequest{
		RegionID:    m.cfg.TradeEvents.RegionID,
		AccessToken: m.cfg.Credentials["access_token"],
		DeviceID:    m.cfg.Credentials["device_id"],
	})
	if err != nil {
		return err
	}

	for {
		ev, err := stream.Recv()
		if err != nil {
			if tradeeventspb.IsStreamClosed(err) {
				return nil
			}
			return err
		}

		switch ev.EventType {
		case "SubscribeSuccess":
			m.setState(stateSubscribed)
			m.adapter.log.Info().Msg("trade events subscribed")
		case "Ping":
			// heartbeat, ignored
		case "AuthError":
			m.adapter.log.Error().Str("message", ev.Message).Msg("trade events auth error, stream stopped")
			m.setState(stateStopped)
			return nil
		case "NumOfConnExceed":
			m.adapter.log.Warn().Str("message", ev.Message).Msg("trade events connection limit exceeded, stream stopped")
			m.setState(stateStopped)
			return nil
		case "SubscribeExpired":
			return errSubscriptionExpired
		case "ORDER":
			m.adapter.onOrderTradeEvent(ev)
		}
	}
}

var errSubscriptionExpired = &subscriptionExpiredError{}

type subscriptionExpiredError struct{}

func (*subscriptionExpiredError) Error() string { return "trade events subscription expired" }

// backoffWithJitter returns exponential backoff capped at maxBackoff with
// up to 20% jitter, matching the documented reconnect behavior.
func backoffWithJitter(attempt int) time.Duration {
	delay := baseBackoff << attempt
	if delay <= 0 || delay > maxBackoff {
		delay = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 5))
	return delay + jitter
}
