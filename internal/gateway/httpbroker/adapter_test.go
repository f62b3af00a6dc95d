package httpbroker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"janus/internal/config"
	"janus/internal/eventbus"
	"janus/internal/gateway"
	"janus/internal/gateway/httpbroker/tradeeventspb"
	"janus/internal/models"
)

func orderRequestFor(symbol string) gateway.OrderRequest {
	return gateway.OrderRequest{
		AccountAlias: "ACC1",
		Symbol:       symbol,
		Exchange:     models.ExchangeNYSE,
		Direction:    models.Long,
		Type:         models.OrderLimit,
		Volume:       10,
		Price:        150,
		TIF:          models.TIFDay,
	}
}

func newTestAdapter(t *testing.T, handler http.HandlerFunc) (*Adapter, *eventbus.Bus, *httptest.Server) {
	t.Helper()
	bus := eventbus.New(zerolog.Nop())
	bus.Start()
	t.Cleanup(bus.Stop)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a := New("ACC1", bus, zerolog.Nop(), config.GlobalConfig{})
	a.baseURL = srv.URL
	a.cfg = config.AccountConfig{Alias: "ACC1", Credentials: map[string]string{"access_token": "tok"}}
	return a, bus, srv
}

func subscribeOnce(bus *eventbus.Bus, eventType models.EventType) <-chan models.Event {
	ch := make(chan models.Event, 16)
	bus.Subscribe(eventType, func(ev models.Event) { ch <- ev })
	return ch
}

func TestMapOrderStatus_PrefersExplicitOverSceneType(t *testing.T) {
	status, ok := mapOrderStatus("FILLED", "FINAL_FILLED", 5, 10)
	if !ok || status != models.StatusPartTraded {
		t.Fatalf("expected PARTTRADED from explicit FILLED with partial fill, got %s ok=%v", status, ok)
	}
}

func TestMapOrderStatus_FallsBackToSceneType(t *testing.T) {
	status, ok := mapOrderStatus("", "FINAL_FILLED", 10, 10)
	if !ok || status != models.StatusAllTraded {
		t.Fatalf("expected ALLTRADED from scene_type fallback, got %s ok=%v", status, ok)
	}
}

func TestMapOrderStatus_ModifySuccessPreservesStatus(t *testing.T) {
	status, ok := mapOrderStatus("", "MODIFY_SUCCESS", 0, 10)
	if !ok || status != "" {
		t.Fatalf("expected matched=true, empty status (preserve), got %s ok=%v", status, ok)
	}
}

func TestMapOrderStatus_UnknownReturnsUnmatched(t *testing.T) {
	_, ok := mapOrderStatus("BOGUS", "ALSO_BOGUS", 0, 10)
	if ok {
		t.Fatal("expected unmatched status to report ok=false")
	}
}

func TestSendOrder_EmitsSubmittingAndRecordsOrderIDMapping(t *testing.T) {
	a, bus, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/instruments/search":
			json.NewEncoder(w).Encode(contractLookupResponse{Results: []struct {
				Ticker      string  `json:"ticker"`
				Symbol      string  `json:"symbol"`
				Exchange    string  `json:"exchange"`
				Currency    string  `json:"currency"`
				ProductType string  `json:"product_type"`
				PriceTick   float64 `json:"price_tick"`
				MinVolume   float64 `json:"min_volume"`
			}{{Ticker: "913256135", Symbol: "AAPL", Exchange: "NYSE"}}})
		case r.Method == http.MethodPost && r.URL.Path == "/orders":
			json.NewEncoder(w).Encode(placeOrderResponse{OrderID: "bkr-1"})
		}
	})

	orders := subscribeOnce(bus, models.EventOrder)

	vtOrderID, err := a.SendOrder(context.Background(), orderRequestFor("AAPL"))
	if err != nil {
		t.Fatalf("SendOrder failed: %v", err)
	}

	first := <-orders
	if first.Order.Status != models.StatusSubmitting {
		t.Fatalf("expected first emitted order to be SUBMITTING, got %s", first.Order.Status)
	}
	if first.Order.VtOrderID != vtOrderID {
		t.Fatalf("returned vt_orderid %q does not match emitted order %q", vtOrderID, first.Order.VtOrderID)
	}

	a.mu.RLock()
	mapped := a.clientOrderMap
	reverse := a.brokerToClient
	a.mu.RUnlock()
	found := false
	for cid, bid := range mapped {
		if bid == "bkr-1" && reverse[bid] == cid {
			found = true
		}
	}
	if !found {
		t.Fatal("expected client_order_id <-> order_id mapping to be recorded both directions")
	}
}

func TestSendOrder_RejectsStopLimit(t *testing.T) {
	a, _, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	req := orderRequestFor("AAPL")
	req.Type = models.OrderStopLimit
	if _, err := a.SendOrder(context.Background(), req); err == nil {
		t.Fatal("expected STOP_LIMIT to be rejected by the capability gate")
	}
}

func TestOnOrderTradeEvent_IgnoresForeignAccount(t *testing.T) {
	a, bus, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	a.cfg.Credentials["account_id"] = "mine"
	orders := subscribeOnce(bus, models.EventOrder)

	key := a.orderCacheKey("clientA")
	a.orderMu.Lock()
	a.orderCache[key] = models.OrderData{VtOrderID: key, Volume: 10, Status: models.StatusNotTraded}
	a.orderMu.Unlock()

	a.onOrderTradeEvent(&tradeeventspb.TradeEvent{
		EventType: "ORDER", SubscribeType: "ORDER_STATUS_CHANGED",
		AccountID: "theirs", ClientOrderID: "clientA", OrderStatus: "FILLED", FilledQty: 10, Qty: 10,
	})

	select {
	case ev := <-orders:
		t.Fatalf("expected no order event for foreign account, got %+v", ev.Order)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOnOrderTradeEvent_ResolvesByOrderIDFirst(t *testing.T) {
	a, bus, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	orders := subscribeOnce(bus, models.EventOrder)

	key := a.orderCacheKey("clientB")
	a.orderMu.Lock()
	a.orderCache[key] = models.OrderData{VtOrderID: key, Volume: 10, Status: models.StatusNotTraded}
	a.orderMu.Unlock()
	a.mu.Lock()
	a.clientOrderMap["clientB"] = "bkr-2"
	a.brokerToClient["bkr-2"] = "clientB"
	a.mu.Unlock()

	a.onOrderTradeEvent(&tradeeventspb.TradeEvent{
		EventType: "ORDER", SubscribeType: "ORDER_STATUS_CHANGED",
		OrderID: "bkr-2", OrderStatus: "FILLED", FilledQty: 10, Qty: 10,
	})

	ev := <-orders
	if ev.Order.Status != models.StatusAllTraded {
		t.Fatalf("expected ALLTRADED, got %s", ev.Order.Status)
	}
}

func TestQueryPosition_MapsShortFromNegativeQty(t *testing.T) {
	a, bus, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(positionSnapshotResponse{Positions: []struct {
			Symbol  string  `json:"symbol"`
			Qty     float64 `json:"qty"`
			AvgCost float64 `json:"avg_cost"`
			PnL     float64 `json:"pnl"`
		}{{Symbol: "TSLA", Qty: -5, AvgCost: 200, PnL: -10}}})
	})
	positions := subscribeOnce(bus, models.EventPosition)

	if err := a.QueryPosition(context.Background()); err != nil {
		t.Fatalf("QueryPosition failed: %v", err)
	}

	ev := <-positions
	if ev.Position.Direction != models.Short || ev.Position.Volume != 5 {
		t.Fatalf("expected SHORT 5, got %+v", ev.Position)
	}
}

func TestBackoffWithJitter_CapsAtMax(t *testing.T) {
	for attempt := 0; attempt < 20; attempt++ {
		d := backoffWithJitter(attempt)
		if d > maxBackoff+maxBackoff/5 {
			t.Fatalf("attempt %d: backoff %v exceeds cap+jitter bound", attempt, d)
		}
		if d < baseBackoff {
			t.Fatalf("attempt %d: backoff %v below base", attempt, d)
		}
	}
}

func TestNew_UsesConfiguredRefreshDebounce(t *testing.T) {
	bus := eventbus.New(zerolog.Nop())
	a := New("ACC1", bus, zerolog.Nop(), config.GlobalConfig{RefreshDebounceMs: 50})
	if a.refreshDebounce != 50*time.Millisecond {
		t.Fatalf("expected configured 50ms debounce, got %v", a.refreshDebounce)
	}
}

func TestNew_ZeroRefreshDebounceFallsBackToDefault(t *testing.T) {
	bus := eventbus.New(zerolog.Nop())
	a := New("ACC1", bus, zerolog.Nop(), config.GlobalConfig{})
	if a.refreshDebounce != defaultRefreshDebounce {
		t.Fatalf("expected default debounce %v, got %v", defaultRefreshDebounce, a.refreshDebounce)
	}
}
