// Package httpbroker implements the synchronous-HTTP broker family: a
// worker-pool-backed REST client for orders/queries, paired with a
// dedicated trade-events streaming goroutine per account that merges
// pushed order events into the same
// immutable-cache-then-emit pattern the socket family uses.
package httpbroker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"janus/internal/config"
	"janus/internal/eventbus"
	"janus/internal/gateway"
	"janus/internal/logs"
	"janus/internal/models"
)

const (
	name                   = "httpbroker"
	defaultHTTPTimeout     = 10 * time.Second
	defaultRefreshDebounce = 1500 * time.Millisecond
)

// Adapter is the Gateway implementation for the HTTP + gRPC trade-events
// broker family.
type Adapter struct {
	log          zerolog.Logger
	bus          *eventbus.Bus
	accountAlias string
	cfg          config.AccountConfig

	refreshDebounce time.Duration

	httpClient *http.Client
	baseURL    string

	mu            sync.RWMutex
	tickerBySymbol map[string]string
	symbolByTicker map[string]string
	clientOrderMap map[string]string // client_order_id -> broker order id, captured at send time
	brokerToClient map[string]string // broker order id -> client_order_id, reverse of the above
	quoteSubs      map[string]quoteSubscription

	orderMu    sync.Mutex
	orderCache map[string]models.OrderData // vt_orderid -> last snapshot

	events *tradeEventsManager

	refreshMu      sync.Mutex
	refreshPending bool
	refreshTimer   *time.Timer
}

// New creates an Adapter bound to accountAlias, publishing through bus.
// global carries the cross-account settings (refresh debounce, reconnect
// cadence) from janus.toml; a zero RefreshDebounceMs falls back to the
// teacher's original default.
func New(accountAlias string, bus *eventbus.Bus, log zerolog.Logger, global config.GlobalConfig) *Adapter {
	debounce := defaultRefreshDebounce
	if global.RefreshDebounceMs > 0 {
		debounce = time.Duration(global.RefreshDebounceMs) * time.Millisecond
	}
	return &Adapter{
		log:             logs.WithAccount(logs.WithGateway(log, name), accountAlias),
		bus:             bus,
		accountAlias:    accountAlias,
		refreshDebounce: debounce,
		httpClient:      &http.Client{Timeout: defaultHTTPTimeout},
		tickerBySymbol:  make(map[string]string),
		symbolByTicker:  make(map[string]string),
		clientOrderMap:  make(map[string]string),
		brokerToClient:  make(map[string]string),
		quoteSubs:       make(map[string]quoteSubscription),
		orderCache:      make(map[string]models.OrderData),
	}
}

// Name identifies the adapter family.
func (a *Adapter) Name() string { return name }

// Capabilities reports the order types, TIFs, and short-sale support this
// adapter family exposes. Broker A has no native STOP_LIMIT.
func (a *Adapter) Capabilities() gateway.Capabilities {
	return gateway.Capabilities{
		OrderTypes:    []models.OrderType{models.OrderMarket, models.OrderLimit, models.OrderStop},
		TIFs:          []models.TimeInForce{models.TIFDay, models.TIFGTC},
		SupportsShort: true,
	}
}

// Connect records the account config, performs an initial snapshot, and
// starts the trade-events streaming goroutine if enabled.
func (a *Adapter) Connect(ctx context.Context, cfg config.AccountConfig) error {
	a.mu.Lock()
	a.cfg = cfg
	a.baseURL = fmt.Sprintf("https://%s", cfg.Host)
	a.mu.Unlock()

	if err := a.QueryOpenOrders(ctx); err != nil {
		a.log.Warn().Err(err).Msg("initial open-order snapshot request failed")
	}
	if err := a.QueryPosition(ctx); err != nil {
		a.log.Warn().Err(err).Msg("initial position snapshot request failed")
	}
	if err := a.QueryAccount(ctx); err != nil {
		a.log.Warn().Err(err).Msg("initial account snapshot request failed")
	}

	if cfg.TradeEvents.Enable {
		a.events = newTradeEventsManager(a, cfg)
		a.events.start()
	}
	return nil
}

// Close stops the trade-events manager, if running.
func (a *Adapter) Close() error {
	if a.events != nil {
		a.events.stop()
	}
	a.refreshMu.Lock()
	if a.refreshTimer != nil {
		a.refreshTimer.Stop()
	}
	a.refreshMu.Unlock()
	return nil
}

var _ gateway.Gateway = (*Adapter)(nil)

func (a *Adapter) orderCacheKey(brokerOrderID string) string {
	return models.MakeVtOrderID(a.accountAlias, brokerOrderID)
}

// scheduleRefresh coalesces repeated FILLED/CANCEL_SUCCESS-style events
// within a debounce window into a single snapshot refresh, per the
// documented refresh-debouncing behavior.
func (a *Adapter) scheduleRefresh() {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()
	if a.refreshPending {
		return
	}
	a.refreshPending = true
	a.refreshTimer = time.AfterFunc(a.refreshDebounce, func() {
		a.refreshMu.Lock()
		a.refreshPending = false
		a.refreshMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), defaultHTTPTimeout)
		defer cancel()
		if err := a.QueryOpenOrders(ctx); err != nil {
			a.log.Warn().Err(err).Msg("debounced open-order refresh failed")
		}
		if err := a.QueryPosition(ctx); err != nil {
			a.log.Warn().Err(err).Msg("debounced position refresh failed")
		}
		if err := a.QueryAccount(ctx); err != nil {
			a.log.Warn().Err(err).Msg("debounced account refresh failed")
		}
	})
}
