// Package socketbroker implements the async socket-protocol broker family:
// a single persistent WebSocket connection multiplexing requests by reqid,
// with callbacks merged into cached TickData/OrderData and emitted through
// the shared EventBus.
package socketbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"janus/internal/config"
	"janus/internal/errs"
	"janus/internal/eventbus"
	"janus/internal/gateway"
	"janus/internal/logs"
	"janus/internal/models"
)

const (
	name                      = "socketbroker"
	contractLookupTimeout     = 10 * time.Second
	defaultBaseReconnectDelay = time.Second
	maxReconnectDelay         = 30 * time.Second
)

type pendingRequest struct {
	contracts []gateway.ContractDetails
	done      chan struct{}
	err       error
}

// Adapter is the Gateway implementation for the socket-protocol family.
type Adapter struct {
	log          zerolog.Logger
	bus          *eventbus.Bus
	accountAlias string
	cfg          config.AccountConfig

	baseReconnectDelay  time.Duration
	healthCheckInterval time.Duration

	mu        sync.RWMutex
	conn      *websocket.Conn
	writeMu   sync.Mutex
	connected bool

	reqCounter int64
	pendingMu  sync.Mutex
	pending    map[int64]*pendingRequest

	subs          map[string]gateway.SubscribeRequest // canonical symbol -> req, replayed on reconnect
	conIDBySymbol map[string]int64
	symbolByConID map[int64]string
	tickCache     map[int64]models.TickData

	orderMu    sync.Mutex
	orderCache map[string]models.OrderData // vt_orderid -> last snapshot

	acctSnapshot *accountSnapshot // accumulates accountSummary tags between emits

	reconnecting int32
	stopCh       chan struct{}
	healthDone   chan struct{}
}

// New creates an Adapter bound to accountAlias, publishing through bus.
// global carries the cross-account settings (refresh debounce, reconnect
// cadence) from janus.toml; a zero IntervalSeconds falls back to the
// teacher's original defaults for both the health check period and the
// first reconnect backoff step.
func New(accountAlias string, bus *eventbus.Bus, log zerolog.Logger, global config.GlobalConfig) *Adapter {
	interval := defaultBaseReconnectDelay
	if global.Reconnect.IntervalSeconds > 0 {
		interval = time.Duration(global.Reconnect.IntervalSeconds) * time.Second
	}
	return &Adapter{
		log:                 logs.WithAccount(logs.WithGateway(log, name), accountAlias),
		bus:                 bus,
		accountAlias:        accountAlias,
		baseReconnectDelay:  interval,
		healthCheckInterval: interval,
		pending:             make(map[int64]*pendingRequest),
		subs:                make(map[string]gateway.SubscribeRequest),
		conIDBySymbol:       make(map[string]int64),
		symbolByConID:       make(map[int64]string),
		tickCache:           make(map[int64]models.TickData),
		orderCache:          make(map[string]models.OrderData),
	}
}

// Name identifies the adapter family.
func (a *Adapter) Name() string { return name }

// Capabilities reports the order types, TIFs, and short-sale support this
// adapter family exposes.
func (a *Adapter) Capabilities() gateway.Capabilities {
	return gateway.Capabilities{
		OrderTypes:    []models.OrderType{models.OrderMarket, models.OrderLimit, models.OrderStop, models.OrderStopLimit},
		TIFs:          []models.TimeInForce{models.TIFDay, models.TIFGTC},
		SupportsShort: true,
	}
}

// Connect dials the WebSocket endpoint, starts the read loop and health
// check, then performs the first snapshot burst.
func (a *Adapter) Connect(ctx context.Context, cfg config.AccountConfig) error {
	a.mu.Lock()
	if a.connected {
		a.mu.Unlock()
		return errs.ErrAlreadyConnected
	}
	a.cfg = cfg
	a.mu.Unlock()

	if err := a.dial(ctx); err != nil {
		return err
	}

	a.stopCh = make(chan struct{})
	a.healthDone = make(chan struct{})
	go a.healthCheckLoop()

	if err := a.QueryAccount(ctx); err != nil {
		a.log.Warn().Err(err).Msg("initial account snapshot request failed")
	}
	if err := a.QueryPosition(ctx); err != nil {
		a.log.Warn().Err(err).Msg("initial position snapshot request failed")
	}
	if err := a.QueryOpenOrders(ctx); err != nil {
		a.log.Warn().Err(err).Msg("initial open-order snapshot request failed")
	}

	return nil
}

func (a *Adapter) dial(ctx context.Context) error {
	url := fmt.Sprintf("ws://%s:%d/socket", a.cfg.Host, a.cfg.Port)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return errs.NewBrokerTransient(name, err)
	}

	a.mu.Lock()
	a.conn = conn
	a.connected = true
	a.mu.Unlock()

	go a.readLoop(conn)
	return nil
}

// Close stops the health check and read loop and closes the socket.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil
	}
	a.connected = false
	conn := a.conn
	a.mu.Unlock()

	if a.stopCh != nil {
		close(a.stopCh)
		<-a.healthDone
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (a *Adapter) readLoop(conn *websocket.Conn) {
	for {
		var fr frame
		if err := conn.ReadJSON(&fr); err != nil {
			a.mu.Lock()
			wasConnected := a.connected
			a.connected = false
			a.mu.Unlock()
			if wasConnected {
				a.bus.Log("warn", name, "socket connection dropped, scheduling reconnect")
				go a.reconnect()
			}
			return
		}
		a.handleFrame(fr)
	}
}

// handleFrame dispatches one inbound wire frame to the appropriate merge
// logic, per the teacher's callback-to-EventBus translation pattern.
func (a *Adapter) handleFrame(fr frame) {
	switch fr.Kind {
	case frameTickPrice:
		a.onTickPrice(fr)
	case frameTickSize:
		a.onTickSize(fr)
	case frameOpenOrder:
		a.onOpenOrder(fr)
	case frameOrderStatus:
		a.onOrderStatus(fr)
	case frameExecDetails:
		a.onExecDetails(fr)
	case framePosition:
		a.onPosition(fr)
	case frameAccountSummary:
		a.onAccountSummary(fr)
	case frameContractDetails:
		a.onContractDetails(fr)
	case frameContractDetailsEnd:
		a.onContractDetailsEnd(fr)
	case frameConnectionStatus:
		a.onConnectionStatus(fr)
	case frameError:
		a.onError(fr)
	}
}

func (a *Adapter) onConnectionStatus(fr frame) {
	var p connectionStatusPayload
	if err := json.Unmarshal(fr.Payload, &p); err != nil {
		return
	}
	if p.Status == "farm_connected" {
		a.resubscribeAll()
	}
}

func (a *Adapter) onError(fr frame) {
	var p errorPayload
	if err := json.Unmarshal(fr.Payload, &p); err != nil {
		return
	}
	a.bus.Log("warn", name, fmt.Sprintf("broker error %d: %s", p.Code, p.Message))
}

// reconnect retries the connection with exponential backoff capped at 30s,
// then replays every tracked subscription.
func (a *Adapter) reconnect() {
	if !atomic.CompareAndSwapInt32(&a.reconnecting, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&a.reconnecting, 0)

	for attempt := 0; ; attempt++ {
		select {
		case <-a.stopCh:
			return
		default:
		}

		delay := a.baseReconnectDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
		logs.LogReconnect(a.log, name, attempt+1, delay)
		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := a.dial(ctx)
		cancel()
		if err == nil {
			a.resubscribeAll()
			return
		}
	}
}

func (a *Adapter) resubscribeAll() {
	a.mu.RLock()
	subs := make([]gateway.SubscribeRequest, 0, len(a.subs))
	for _, req := range a.subs {
		subs = append(subs, req)
	}
	a.mu.RUnlock()

	for _, req := range subs {
		if err := a.Subscribe(context.Background(), req); err != nil {
			a.log.Warn().Str("symbol", req.Symbol).Err(err).Msg("resubscribe failed")
		}
	}
}

func (a *Adapter) healthCheckLoop() {
	defer close(a.healthDone)
	ticker := time.NewTicker(a.healthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.mu.RLock()
			connected := a.connected
			a.mu.RUnlock()
			if !connected {
				go a.reconnect()
			}
		case <-a.stopCh:
			return
		}
	}
}

func (a *Adapter) nextReqID() int64 {
	return atomic.AddInt64(&a.reqCounter, 1)
}

func (a *Adapter) send(fr frame) error {
	a.mu.RLock()
	conn := a.conn
	connected := a.connected
	a.mu.RUnlock()
	if !connected || conn == nil {
		return errs.ErrNotConnected
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return conn.WriteJSON(fr)
}

func newVtOrderID(accountAlias string) string {
	return models.MakeVtOrderID(accountAlias, uuid.NewString())
}

var _ gateway.Gateway = (*Adapter)(nil)
