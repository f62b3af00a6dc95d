package httpbroker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"janus/internal/errs"
	"janus/internal/gateway"
	"janus/internal/models"
)

const quotePollInterval = 3 * time.Second

type quoteSubscription struct {
	cancel context.CancelFunc
}

// Subscribe resolves a ticker for req.Symbol (via request_contract_details
// if unknown) and starts a polling goroutine against the quote endpoint;
// broker A has no push market-data feed, so "streaming" here means a
// bounded-interval HTTP poll, each result emitted as a fresh TickData (no
// tick cache is kept or merged across polls).
func (a *Adapter) Subscribe(ctx context.Context, req gateway.SubscribeRequest) error {
	ticker, err := a.resolveTicker(ctx, req)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if _, exists := a.quoteSubs[req.Symbol]; exists {
		a.mu.Unlock()
		return nil
	}
	pollCtx, cancel := context.WithCancel(context.Background())
	a.quoteSubs[req.Symbol] = quoteSubscription{cancel: cancel}
	a.mu.Unlock()

	go a.pollQuote(pollCtx, req.Symbol, ticker)
	return nil
}

// Unsubscribe stops the polling goroutine for req.Symbol.
func (a *Adapter) Unsubscribe(ctx context.Context, req gateway.SubscribeRequest) error {
	a.mu.Lock()
	sub, ok := a.quoteSubs[req.Symbol]
	delete(a.quoteSubs, req.Symbol)
	a.mu.Unlock()
	if ok {
		sub.cancel()
	}
	return nil
}

// SubscribeBars mirrors Subscribe; bars are derived downstream from the
// polled quote stream.
func (a *Adapter) SubscribeBars(ctx context.Context, req gateway.BarsRequest) error {
	return a.Subscribe(ctx, gateway.SubscribeRequest{Symbol: req.Symbol, Exchange: req.Exchange})
}

// UnsubscribeBars mirrors Unsubscribe.
func (a *Adapter) UnsubscribeBars(ctx context.Context, req gateway.BarsRequest) error {
	return a.Unsubscribe(ctx, gateway.SubscribeRequest{Symbol: req.Symbol, Exchange: req.Exchange})
}

func (a *Adapter) resolveTicker(ctx context.Context, req gateway.SubscribeRequest) (string, error) {
	a.mu.RLock()
	ticker, ok := a.tickerBySymbol[req.Symbol]
	a.mu.RUnlock()
	if ok {
		return ticker, nil
	}

	results, err := a.RequestContractDetails(ctx, gateway.ContractQuery{
		Symbol: req.Symbol, Exchange: req.Exchange, AssetClass: req.AssetClass,
	})
	if err != nil {
		return "", err
	}
	if len(results) != 1 {
		return "", errs.NewRegistryAmbiguous(req.Symbol, len(results))
	}
	return results[0].HTTPTicker, nil
}

func (a *Adapter) pollQuote(ctx context.Context, symbol, ticker string) {
	t := time.NewTicker(quotePollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.fetchQuote(ctx, symbol, ticker)
		}
	}
}

type quoteResponse struct {
	Last    float64 `json:"last"`
	Bid     float64 `json:"bid"`
	Ask     float64 `json:"ask"`
	BidSize float64 `json:"bid_size"`
	AskSize float64 `json:"ask_size"`
	Volume  float64 `json:"volume"`
}

func (a *Adapter) fetchQuote(ctx context.Context, symbol, ticker string) {
	var q quoteResponse
	path := fmt.Sprintf("/quotes/%s", ticker)
	if err := a.doJSON(ctx, http.MethodGet, path, nil, &q); err != nil {
		a.bus.Log("warn", name, fmt.Sprintf("quote poll failed for %s: %s", symbol, err.Error()))
		return
	}

	tick := models.TickData{
		Symbol:    symbol,
		Last:      q.Last,
		Bid:       q.Bid,
		Ask:       q.Ask,
		BidSize:   q.BidSize,
		AskSize:   q.AskSize,
		Volume:    q.Volume,
		Timestamp: time.Now(),
	}
	a.bus.Publish(models.NewTickEvent(tick))
}

func (a *Adapter) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	return doJSONRequest(ctx, a.httpClient, a.baseURL, a.cfg, method, path, body, out)
}
