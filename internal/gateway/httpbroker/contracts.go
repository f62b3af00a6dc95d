package httpbroker

import (
	"context"
	"net/http"

	"janus/internal/gateway"
	"janus/internal/models"
)

type contractLookupResponse struct {
	Results []struct {
		Ticker      string  `json:"ticker"`
		Symbol      string  `json:"symbol"`
		Exchange    string  `json:"exchange"`
		Currency    string  `json:"currency"`
		ProductType string  `json:"product_type"`
		PriceTick   float64 `json:"price_tick"`
		MinVolume   float64 `json:"min_volume"`
	} `json:"results"`
}

// RequestContractDetails looks up a ticker by canonical symbol. Broker A's
// instrument search is a plain synchronous HTTP call, so unlike the socket
// family there is no pending-request bookkeeping: the bounded timeout comes
// from ctx alone.
func (a *Adapter) RequestContractDetails(ctx context.Context, query gateway.ContractQuery) ([]gateway.ContractDetails, error) {
	var resp contractLookupResponse
	path := "/instruments/search?symbol=" + query.Symbol
	if err := a.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	results := make([]gateway.ContractDetails, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, gateway.ContractDetails{
			Contract: models.ContractData{
				VtSymbol:    r.Symbol,
				Exchange:    models.Exchange(r.Exchange),
				Currency:    r.Currency,
				ProductType: r.ProductType,
				PriceTick:   r.PriceTick,
				MinVolume:   r.MinVolume,
			},
			HTTPTicker: r.Ticker,
		})
	}

	if len(results) == 1 {
		c := results[0]
		a.mu.Lock()
		a.tickerBySymbol[c.Contract.VtSymbol] = c.HTTPTicker
		a.symbolByTicker[c.HTTPTicker] = c.Contract.VtSymbol
		a.mu.Unlock()
		a.bus.Publish(models.NewContractEvent(c.Contract))
	}

	return results, nil
}
