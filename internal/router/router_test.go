package router

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"janus/internal/config"
	"janus/internal/errs"
	"janus/internal/eventbus"
	"janus/internal/gateway"
	"janus/internal/models"
	"janus/internal/oms"
	"janus/internal/registry"
)

// fakeGateway is a minimal, fully in-memory Gateway stand-in so router
// tests never touch a real network or broker process.
type fakeGateway struct {
	name string
	caps gateway.Capabilities

	contractResults []gateway.ContractDetails
	contractErr     error

	lastOrder gateway.OrderRequest
	sendErr   error
	nextID    string
}

func (g *fakeGateway) Name() string                     { return g.name }
func (g *fakeGateway) Capabilities() gateway.Capabilities { return g.caps }
func (g *fakeGateway) Connect(context.Context, config.AccountConfig) error { return nil }
func (g *fakeGateway) Close() error                       { return nil }
func (g *fakeGateway) Subscribe(context.Context, gateway.SubscribeRequest) error   { return nil }
func (g *fakeGateway) Unsubscribe(context.Context, gateway.SubscribeRequest) error { return nil }
func (g *fakeGateway) SubscribeBars(context.Context, gateway.BarsRequest) error    { return nil }
func (g *fakeGateway) UnsubscribeBars(context.Context, gateway.BarsRequest) error  { return nil }
func (g *fakeGateway) QueryAccount(context.Context) error    { return nil }
func (g *fakeGateway) QueryPosition(context.Context) error   { return nil }
func (g *fakeGateway) QueryOpenOrders(context.Context) error { return nil }

func (g *fakeGateway) SendOrder(ctx context.Context, req gateway.OrderRequest) (string, error) {
	g.lastOrder = req
	if g.sendErr != nil {
		return "", g.sendErr
	}
	return g.nextID, nil
}

func (g *fakeGateway) CancelOrder(context.Context, string) error { return nil }

func (g *fakeGateway) RequestContractDetails(context.Context, gateway.ContractQuery) ([]gateway.ContractDetails, error) {
	return g.contractResults, g.contractErr
}

var _ gateway.Gateway = (*fakeGateway)(nil)

func newTestRouter(t *testing.T, acct config.AccountConfig, gw gateway.Gateway) (*Router, *registry.SymbolRegistry, func()) {
	t.Helper()

	dbPath := fmt.Sprintf("test_router_registry_%d.db", rand.Int63())
	store, err := registry.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	reg, err := registry.NewSymbolRegistry(context.Background(), store, zerolog.Nop())
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}

	bus := eventbus.New(zerolog.Nop())
	bus.Start()
	cache := oms.New(bus)

	cfg := &config.Config{Accounts: []config.AccountConfig{acct}, Global: config.GlobalConfig{Reconnect: config.ReconnectConfig{IntervalSeconds: 5}}}
	gateways := map[string]gateway.Gateway{acct.Alias: gw}

	r := New(cfg, reg, cache, gateways, zerolog.Nop())
	cleanup := func() {
		bus.Stop()
		store.Close()
		os.Remove(dbPath)
	}
	return r, reg, cleanup
}

func socketAccount() config.AccountConfig {
	return config.AccountConfig{Alias: "SOCK1", Broker: config.BrokerSocket, AllowShort: false}
}

func httpAccount() config.AccountConfig {
	return config.AccountConfig{Alias: "HTTP1", Broker: config.BrokerHTTP, AllowShort: true}
}

func fullCaps() gateway.Capabilities {
	return gateway.Capabilities{
		OrderTypes:    []models.OrderType{models.OrderMarket, models.OrderLimit, models.OrderStop, models.OrderStopLimit},
		TIFs:          []models.TimeInForce{models.TIFDay, models.TIFGTC},
		SupportsShort: true,
	}
}

func buyIntent(alias, symbol string) models.OrderIntent {
	return models.OrderIntent{
		AccountAlias: alias,
		Symbol:       symbol,
		Side:         models.SideBuy,
		Type:         models.OrderLimit,
		Qty:          10,
		LimitPrice:   100,
		TIF:          models.TIFDay,
	}
}

func TestRoute_AutoFillsSocketSymbolOnFirstSight(t *testing.T) {
	gw := &fakeGateway{
		name: "socketbroker",
		caps: fullCaps(),
		contractResults: []gateway.ContractDetails{{
			Contract:    models.ContractData{VtSymbol: "AAPL", Exchange: models.ExchangeNASD, ProductType: "STOCK"},
			SocketConID: 265598,
		}},
		nextID: "SOCK1.1001",
	}
	r, reg, cleanup := newTestRouter(t, socketAccount(), gw)
	defer cleanup()

	vtOrderID, err := r.Route(context.Background(), buyIntent("SOCK1", "aapl"))
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if vtOrderID != "SOCK1.1001" {
		t.Fatalf("unexpected vt_orderid: %s", vtOrderID)
	}

	rec, ok := reg.GetByCanonical("AAPL")
	if !ok || rec.SocketConID != 265598 {
		t.Fatalf("expected registry to be auto-filled with conid, got %+v ok=%v", rec, ok)
	}
	if gw.lastOrder.Direction != models.Long {
		t.Fatalf("expected LONG direction for BUY, got %s", gw.lastOrder.Direction)
	}
}

func TestRoute_AmbiguousContractLookupErrors(t *testing.T) {
	gw := &fakeGateway{
		name: "socketbroker",
		caps: fullCaps(),
		contractResults: []gateway.ContractDetails{
			{Contract: models.ContractData{VtSymbol: "AAPL"}, SocketConID: 1},
			{Contract: models.ContractData{VtSymbol: "AAPL"}, SocketConID: 2},
		},
	}
	r, _, cleanup := newTestRouter(t, socketAccount(), gw)
	defer cleanup()

	_, err := r.Route(context.Background(), buyIntent("SOCK1", "AAPL"))
	var ambiguous *errs.RegistryAmbiguousError
	if !errs.As(err, &ambiguous) {
		t.Fatalf("expected RegistryAmbiguousError, got %v", err)
	}
}

func TestRoute_ZeroContractResultsIsAmbiguous(t *testing.T) {
	gw := &fakeGateway{name: "socketbroker", caps: fullCaps()}
	r, _, cleanup := newTestRouter(t, socketAccount(), gw)
	defer cleanup()

	_, err := r.Route(context.Background(), buyIntent("SOCK1", "UNKNOWN"))
	var ambiguous *errs.RegistryAmbiguousError
	if !errs.As(err, &ambiguous) {
		t.Fatalf("expected RegistryAmbiguousError for zero results, got %v", err)
	}
}

func TestRoute_SellWithNoLongAndShortDisabledRejected(t *testing.T) {
	gw := &fakeGateway{
		name: "socketbroker",
		caps: fullCaps(),
		contractResults: []gateway.ContractDetails{{
			Contract:    models.ContractData{VtSymbol: "AAPL"},
			SocketConID: 1,
		}},
	}
	acct := socketAccount()
	acct.AllowShort = false
	r, _, cleanup := newTestRouter(t, acct, gw)
	defer cleanup()

	intent := buyIntent("SOCK1", "AAPL")
	intent.Side = models.SideSell

	_, err := r.Route(context.Background(), intent)
	if err == nil {
		t.Fatal("expected SELL with no position and allow_short=false to be rejected")
	}
}

func TestRoute_SellWithShortAllowedOpensShort(t *testing.T) {
	gw := &fakeGateway{
		name: "httpbroker",
		caps: fullCaps(),
		contractResults: []gateway.ContractDetails{{
			Contract:   models.ContractData{VtSymbol: "TSLA"},
			HTTPTicker: "913256135",
		}},
		nextID: "HTTP1.2",
	}
	r, _, cleanup := newTestRouter(t, httpAccount(), gw)
	defer cleanup()

	intent := buyIntent("HTTP1", "TSLA")
	intent.Side = models.SideSell

	if _, err := r.Route(context.Background(), intent); err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if gw.lastOrder.Direction != models.Short {
		t.Fatalf("expected flat position + allow_short to open SHORT, got %s", gw.lastOrder.Direction)
	}
}

func TestRoute_CapabilityGateRejectsUnsupportedOrderType(t *testing.T) {
	gw := &fakeGateway{
		name: "httpbroker",
		caps: gateway.Capabilities{
			OrderTypes:    []models.OrderType{models.OrderMarket, models.OrderLimit, models.OrderStop},
			TIFs:          []models.TimeInForce{models.TIFDay, models.TIFGTC},
			SupportsShort: true,
		},
		contractResults: []gateway.ContractDetails{{
			Contract:   models.ContractData{VtSymbol: "AAPL"},
			HTTPTicker: "913256135",
		}},
	}
	r, _, cleanup := newTestRouter(t, httpAccount(), gw)
	defer cleanup()

	intent := buyIntent("HTTP1", "AAPL")
	intent.Type = models.OrderStopLimit
	intent.StopPrice = 90

	_, err := r.Route(context.Background(), intent)
	var unsupported *errs.CapabilityUnsupportedError
	if !errs.As(err, &unsupported) {
		t.Fatalf("expected CapabilityUnsupportedError for STOP_LIMIT on httpbroker, got %v", err)
	}
}

func TestRoute_UnknownAccountAliasRejected(t *testing.T) {
	gw := &fakeGateway{name: "socketbroker", caps: fullCaps()}
	r, _, cleanup := newTestRouter(t, socketAccount(), gw)
	defer cleanup()

	_, err := r.Route(context.Background(), buyIntent("NOPE", "AAPL"))
	if err == nil {
		t.Fatal("expected unknown account alias to be rejected")
	}
}

func TestRoute_InvalidIntentFailsValidationBeforeLookup(t *testing.T) {
	gw := &fakeGateway{name: "socketbroker", caps: fullCaps()}
	r, _, cleanup := newTestRouter(t, socketAccount(), gw)
	defer cleanup()

	intent := buyIntent("SOCK1", "AAPL")
	intent.Qty = 0

	if _, err := r.Route(context.Background(), intent); err == nil {
		t.Fatal("expected zero-quantity intent to fail Validate before reaching the registry")
	}
}
