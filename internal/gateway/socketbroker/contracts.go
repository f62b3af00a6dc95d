package socketbroker

import (
	"context"
	"encoding/json"
	"strconv"

	"janus/internal/errs"
	"janus/internal/gateway"
	"janus/internal/models"
)

// RequestContractDetails is exposed synchronously to registry callers with
// a bounded timeout; internally it schedules the lookup on the connection
// and awaits the contractDetailsEnd marker.
func (a *Adapter) RequestContractDetails(ctx context.Context, query gateway.ContractQuery) ([]gateway.ContractDetails, error) {
	reqID := a.nextReqID()
	pr := &pendingRequest{done: make(chan struct{})}

	a.pendingMu.Lock()
	a.pending[reqID] = pr
	a.pendingMu.Unlock()
	defer func() {
		a.pendingMu.Lock()
		delete(a.pending, reqID)
		a.pendingMu.Unlock()
	}()

	if err := a.send(frame{
		ReqID: reqID,
		Kind:  frameContractDetails,
		Payload: mustMarshal(struct {
			Symbol     string `json:"symbol"`
			Exchange   string `json:"exchange"`
			AssetClass string `json:"asset_class"`
		}{Symbol: query.Symbol, Exchange: string(query.Exchange), AssetClass: string(query.AssetClass)}),
	}); err != nil {
		return nil, errs.NewBrokerTransient(name, err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, contractLookupTimeout)
	defer cancel()

	select {
	case <-pr.done:
		return pr.contracts, pr.err
	case <-timeoutCtx.Done():
		return nil, errs.NewBrokerTransient(name, timeoutCtx.Err())
	}
}

func (a *Adapter) onContractDetails(fr frame) {
	var p contractDetailsPayload
	if err := json.Unmarshal(fr.Payload, &p); err != nil {
		return
	}

	a.pendingMu.Lock()
	pr, ok := a.pending[fr.ReqID]
	a.pendingMu.Unlock()
	if !ok {
		return
	}

	pr.contracts = append(pr.contracts, gateway.ContractDetails{
		Contract: models.ContractData{
			VtSymbol:  p.Symbol,
			Exchange:  models.Exchange(p.Exchange),
			Currency:  p.Currency,
			PriceTick: p.PriceTick,
		},
		SocketConID: p.ConID,
	})
}

func (a *Adapter) onContractDetailsEnd(fr frame) {
	a.pendingMu.Lock()
	pr, ok := a.pending[fr.ReqID]
	a.pendingMu.Unlock()
	if !ok {
		return
	}

	if len(pr.contracts) == 1 {
		c := pr.contracts[0]
		a.mu.Lock()
		a.conIDBySymbol[c.Contract.VtSymbol] = c.SocketConID
		a.symbolByConID[c.SocketConID] = c.Contract.VtSymbol
		a.mu.Unlock()

		a.bus.Publish(models.NewContractEvent(c.Contract))
	}

	close(pr.done)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
