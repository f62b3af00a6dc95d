package harmony

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"janus/internal/config"
	"janus/internal/gateway"
	"janus/internal/models"
	"janus/internal/registry"
)

type fakeGateway struct {
	name    string
	results map[string][]gateway.ContractDetails
	err     error
}

func (g *fakeGateway) Name() string                                              { return g.name }
func (g *fakeGateway) Capabilities() gateway.Capabilities                        { return gateway.Capabilities{} }
func (g *fakeGateway) Connect(context.Context, config.AccountConfig) error       { return nil }
func (g *fakeGateway) Close() error                                              { return nil }
func (g *fakeGateway) Subscribe(context.Context, gateway.SubscribeRequest) error   { return nil }
func (g *fakeGateway) Unsubscribe(context.Context, gateway.SubscribeRequest) error { return nil }
func (g *fakeGateway) SubscribeBars(context.Context, gateway.BarsRequest) error    { return nil }
func (g *fakeGateway) UnsubscribeBars(context.Context, gateway.BarsRequest) error  { return nil }
func (g *fakeGateway) SendOrder(context.Context, gateway.OrderRequest) (string, error) {
	return "", nil
}
func (g *fakeGateway) CancelOrder(context.Context, string) error { return nil }
func (g *fakeGateway) QueryAccount(context.Context) error        { return nil }
func (g *fakeGateway) QueryPosition(context.Context) error       { return nil }
func (g *fakeGateway) QueryOpenOrders(context.Context) error     { return nil }

func (g *fakeGateway) RequestContractDetails(ctx context.Context, q gateway.ContractQuery) ([]gateway.ContractDetails, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.results[q.Symbol], nil
}

var _ gateway.Gateway = (*fakeGateway)(nil)

func newTestSetup(t *testing.T, gw gateway.Gateway, acct config.AccountConfig) (*Harmony, *registry.SymbolRegistry, func()) {
	t.Helper()
	dbPath := fmt.Sprintf("test_harmony_registry_%d.db", rand.Int63())
	store, err := registry.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	reg, err := registry.NewSymbolRegistry(context.Background(), store, zerolog.Nop())
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}
	cfg := &config.Config{Accounts: []config.AccountConfig{acct}}
	h := New(cfg, reg, map[string]gateway.Gateway{acct.Alias: gw}, zerolog.Nop())
	cleanup := func() {
		store.Close()
		os.Remove(dbPath)
	}
	return h, reg, cleanup
}

func TestRun_FillsMissingSocketConID(t *testing.T) {
	gw := &fakeGateway{
		name: "socketbroker",
		results: map[string][]gateway.ContractDetails{
			"AAPL": {{Contract: models.ContractData{VtSymbol: "AAPL", ProductType: "STOCK"}, SocketConID: 265598}},
		},
	}
	h, reg, cleanup := newTestSetup(t, gw, config.AccountConfig{Alias: "SOCK1", Broker: config.BrokerSocket})
	defer cleanup()

	// Seed a registry entry that only has an HTTP ticker, missing the
	// socket conid harmony is expected to fill in.
	if _, err := reg.EnsureHTTPSymbol(context.Background(), "AAPL", "913256135", "Apple Inc", "STOCK"); err != nil {
		t.Fatalf("seeding registry: %v", err)
	}

	summary, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.Filled != 1 {
		t.Fatalf("expected 1 fill, got %+v", summary)
	}

	rec, ok := reg.GetByCanonical("AAPL")
	if !ok || rec.SocketConID != 265598 {
		t.Fatalf("expected socket conid to be filled, got %+v", rec)
	}
}

func TestRun_ZeroResultsCountsAsSkippedNoMatch(t *testing.T) {
	gw := &fakeGateway{name: "socketbroker", results: map[string][]gateway.ContractDetails{}}
	h, reg, cleanup := newTestSetup(t, gw, config.AccountConfig{Alias: "SOCK1", Broker: config.BrokerSocket})
	defer cleanup()

	if _, err := reg.EnsureHTTPSymbol(context.Background(), "ORPHAN", "000000", "Unknown", "STOCK"); err != nil {
		t.Fatalf("seeding registry: %v", err)
	}

	summary, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.SkippedNoMatch != 1 || summary.Filled != 0 {
		t.Fatalf("expected 1 skipped-no-match, got %+v", summary)
	}
}

func TestRun_MultipleResultsCountsAsSkippedAmbiguous(t *testing.T) {
	gw := &fakeGateway{
		name: "socketbroker",
		results: map[string][]gateway.ContractDetails{
			"DUP": {
				{Contract: models.ContractData{VtSymbol: "DUP"}, SocketConID: 1},
				{Contract: models.ContractData{VtSymbol: "DUP"}, SocketConID: 2},
			},
		},
	}
	h, reg, cleanup := newTestSetup(t, gw, config.AccountConfig{Alias: "SOCK1", Broker: config.BrokerSocket})
	defer cleanup()

	if _, err := reg.EnsureHTTPSymbol(context.Background(), "DUP", "dup-ticker", "Dup Co", "STOCK"); err != nil {
		t.Fatalf("seeding registry: %v", err)
	}

	summary, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.SkippedAmbiguous != 1 {
		t.Fatalf("expected 1 skipped-ambiguous, got %+v", summary)
	}
}

func TestRun_ContractLookupErrorCountsAsError(t *testing.T) {
	gw := &fakeGateway{name: "socketbroker", err: fmt.Errorf("transient network failure")}
	h, reg, cleanup := newTestSetup(t, gw, config.AccountConfig{Alias: "SOCK1", Broker: config.BrokerSocket})
	defer cleanup()

	if _, err := reg.EnsureHTTPSymbol(context.Background(), "AAPL", "913256135", "Apple Inc", "STOCK"); err != nil {
		t.Fatalf("seeding registry: %v", err)
	}

	summary, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.Errors != 1 {
		t.Fatalf("expected 1 error, got %+v", summary)
	}
}

func TestRun_NoMissingEntriesIsANoop(t *testing.T) {
	gw := &fakeGateway{name: "socketbroker"}
	h, reg, cleanup := newTestSetup(t, gw, config.AccountConfig{Alias: "SOCK1", Broker: config.BrokerSocket})
	defer cleanup()

	if _, err := reg.EnsureSocketSymbol(context.Background(), "AAPL", 265598, "Apple Inc", "STOCK"); err != nil {
		t.Fatalf("seeding registry: %v", err)
	}

	summary, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary != (Summary{}) {
		t.Fatalf("expected a no-op summary, got %+v", summary)
	}
}
