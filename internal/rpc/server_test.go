package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"janus/internal/config"
	"janus/internal/eventbus"
	"janus/internal/gateway"
	"janus/internal/harmony"
	"janus/internal/models"
	"janus/internal/oms"
	"janus/internal/registry"
	"janus/internal/router"
)

type fakeGateway struct {
	name         string
	caps         gateway.Capabilities
	contractHits []gateway.ContractDetails
	nextOrderID  string
	cancelled    []string
}

func (g *fakeGateway) Name() string                                              { return g.name }
func (g *fakeGateway) Capabilities() gateway.Capabilities                        { return g.caps }
func (g *fakeGateway) Connect(context.Context, config.AccountConfig) error       { return nil }
func (g *fakeGateway) Close() error                                              { return nil }
func (g *fakeGateway) Subscribe(context.Context, gateway.SubscribeRequest) error   { return nil }
func (g *fakeGateway) Unsubscribe(context.Context, gateway.SubscribeRequest) error { return nil }
func (g *fakeGateway) SubscribeBars(context.Context, gateway.BarsRequest) error    { return nil }
func (g *fakeGateway) UnsubscribeBars(context.Context, gateway.BarsRequest) error  { return nil }
func (g *fakeGateway) QueryAccount(context.Context) error                         { return nil }
func (g *fakeGateway) QueryPosition(context.Context) error                        { return nil }
func (g *fakeGateway) QueryOpenOrders(context.Context) error                      { return nil }

func (g *fakeGateway) SendOrder(ctx context.Context, req gateway.OrderRequest) (string, error) {
	return g.nextOrderID, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, vtOrderID string) error {
	g.cancelled = append(g.cancelled, vtOrderID)
	return nil
}

func (g *fakeGateway) RequestContractDetails(context.Context, gateway.ContractQuery) ([]gateway.ContractDetails, error) {
	return g.contractHits, nil
}

var _ gateway.Gateway = (*fakeGateway)(nil)

func fullCaps() gateway.Capabilities {
	return gateway.Capabilities{
		OrderTypes:    []models.OrderType{models.OrderMarket, models.OrderLimit, models.OrderStop},
		TIFs:          []models.TimeInForce{models.TIFDay, models.TIFGTC},
		SupportsShort: true,
	}
}

func newTestServer(t *testing.T) (*Server, *fakeGateway, func()) {
	t.Helper()

	dbPath := fmt.Sprintf("test_rpc_registry_%d.db", rand.Int63())
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

	gw := &fakeGateway{
		name: "socketbroker",
		caps: fullCaps(),
		contractHits: []gateway.ContractDetails{{
			Contract:    models.ContractData{VtSymbol: "AAPL", ProductType: "STOCK"},
			SocketConID: 265598,
		}},
		nextOrderID: "SOCK1.1001",
	}
	acct := config.AccountConfig{Alias: "SOCK1", Broker: config.BrokerSocket, AllowShort: false}
	cfg := &config.Config{Accounts: []config.AccountConfig{acct}}
	gateways := map[string]gateway.Gateway{"SOCK1": gw}

	rt := router.New(cfg, reg, cache, gateways, zerolog.Nop())
	hm := harmony.New(cfg, reg, gateways, zerolog.Nop())

	s := New(cfg, reg, cache, bus, rt, hm, gateways, zerolog.Nop())
	cleanup := func() {
		bus.Stop()
		store.Close()
		os.Remove(dbPath)
	}
	return s, gw, cleanup
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	return resp
}

func TestHandleSendOrderIntent_RoutesThroughRouter(t *testing.T) {
	s, gw, cleanup := newTestServer(t)
	defer cleanup()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp := postJSON(t, srv, "/api/v1/orders", sendOrderIntentRequest{
		AccountAlias: "SOCK1", Symbol: "AAPL", Side: "BUY", Type: "LIMIT", Qty: 10, LimitPrice: 100,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out sendOrderIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.VtOrderID != gw.nextOrderID {
		t.Fatalf("expected %s, got %s", gw.nextOrderID, out.VtOrderID)
	}
}

func TestHandleSendOrderIntent_InvalidIntentReturns422(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp := postJSON(t, srv, "/api/v1/orders", sendOrderIntentRequest{
		AccountAlias: "SOCK1", Symbol: "AAPL", Side: "BUY", Type: "LIMIT", Qty: 0,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	var envelope errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Code != "invalid_intent" {
		t.Fatalf("expected code %q, got %q", "invalid_intent", envelope.Code)
	}
	if envelope.Message == "" {
		t.Fatal("expected a non-empty message")
	}
}

func TestHandleCancelOrder_UnknownAccountReturnsCodedError(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp := postJSON(t, srv, "/api/v1/orders/cancel", cancelOrderRequest{VtOrderID: "NOPE1.1001"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var envelope errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Code != "unknown_account" {
		t.Fatalf("expected code %q, got %q", "unknown_account", envelope.Code)
	}
}

func TestHandleCancelOrder_DispatchesToOwningGateway(t *testing.T) {
	s, gw, cleanup := newTestServer(t)
	defer cleanup()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp := postJSON(t, srv, "/api/v1/orders/cancel", cancelOrderRequest{VtOrderID: "SOCK1.1001"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(gw.cancelled) != 1 || gw.cancelled[0] != "SOCK1.1001" {
		t.Fatalf("expected cancel to reach the gateway, got %+v", gw.cancelled)
	}
}

func TestHandleHarmony_ReturnsSummary(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp := postJSON(t, srv, "/api/v1/harmony", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out harmonySummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHandleBrokerList_MarksFirstAccountDefault(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/brokers")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var out []brokerInfo
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || !out[0].IsDefault || out[0].Alias != "SOCK1" {
		t.Fatalf("unexpected broker list: %+v", out)
	}
}
