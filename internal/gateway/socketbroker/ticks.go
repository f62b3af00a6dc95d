package socketbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"janus/internal/errs"
	"janus/internal/gateway"
	"janus/internal/models"
)

// Subscribe resolves conID for req.Symbol (looking it up over the wire if
// not already known) then asks the broker to stream full-mode ticks.
func (a *Adapter) Subscribe(ctx context.Context, req gateway.SubscribeRequest) error {
	conID, err := a.resolveConID(ctx, req)
	if err != nil {
		return err
	}

	if err := a.send(frame{
		ReqID:   a.nextReqID(),
		Kind:    frameTickPrice,
		Payload: mustMarshal(subscribeCommand{ConID: conID, Mode: "full"}),
	}); err != nil {
		return errs.NewBrokerTransient(name, err)
	}

	a.mu.Lock()
	a.subs[req.Symbol] = req
	a.mu.Unlock()
	return nil
}

// Unsubscribe cancels the market data stream but retains the cached tick
// slot; symbol-to-conID and last-known-tick state are not cleared, matching
// the socket protocol's documented limitation.
func (a *Adapter) Unsubscribe(ctx context.Context, req gateway.SubscribeRequest) error {
	a.mu.Lock()
	conID, ok := a.conIDBySymbol[req.Symbol]
	delete(a.subs, req.Symbol)
	a.mu.Unlock()
	if !ok {
		return nil
	}
	return a.send(frame{
		ReqID:   a.nextReqID(),
		Kind:    frameTickPrice,
		Payload: mustMarshal(subscribeCommand{ConID: conID, Mode: "off"}),
	})
}

// SubscribeBars is not modeled by the wire protocol beyond the tick stream
// in this adapter family; bars are derived downstream from ticks, so this
// subscribes to the symbol's tick stream exactly as Subscribe does.
func (a *Adapter) SubscribeBars(ctx context.Context, req gateway.BarsRequest) error {
	return a.Subscribe(ctx, gateway.SubscribeRequest{Symbol: req.Symbol, Exchange: req.Exchange})
}

// UnsubscribeBars mirrors SubscribeBars.
func (a *Adapter) UnsubscribeBars(ctx context.Context, req gateway.BarsRequest) error {
	return a.Unsubscribe(ctx, gateway.SubscribeRequest{Symbol: req.Symbol, Exchange: req.Exchange})
}

func (a *Adapter) resolveConID(ctx context.Context, req gateway.SubscribeRequest) (int64, error) {
	a.mu.RLock()
	conID, ok := a.conIDBySymbol[req.Symbol]
	a.mu.RUnlock()
	if ok {
		return conID, nil
	}

	results, err := a.RequestContractDetails(ctx, gateway.ContractQuery{
		Symbol: req.Symbol, Exchange: req.Exchange, AssetClass: req.AssetClass,
	})
	if err != nil {
		return 0, err
	}
	if len(results) != 1 {
		return 0, errs.NewRegistryAmbiguous(req.Symbol, len(results))
	}
	return results[0].SocketConID, nil
}

func (a *Adapter) onTickPrice(fr frame) {
	var p tickPricePayload
	if err := json.Unmarshal(fr.Payload, &p); err != nil {
		return
	}
	a.mergeTick(p.ConID, func(t *models.TickData) {
		switch p.Field {
		case "last":
			t.Last = p.Price
		case "bid":
			t.Bid = p.Price
		case "ask":
			t.Ask = p.Price
		}
	})
}

func (a *Adapter) onTickSize(fr frame) {
	var p tickSizePayload
	if err := json.Unmarshal(fr.Payload, &p); err != nil {
		return
	}
	a.mergeTick(p.ConID, func(t *models.TickData) {
		switch p.Field {
		case "bid_size":
			t.BidSize = p.Size
		case "ask_size":
			t.AskSize = p.Size
		case "volume":
			t.Volume = p.Size
		}
	})
}

// mergeTick applies mutate to the cached TickData for conID and emits the
// result as a brand-new immutable value via on_tick.
func (a *Adapter) mergeTick(conID int64, mutate func(*models.TickData)) {
	a.mu.Lock()
	symbol, ok := a.symbolByConID[conID]
	if !ok {
		a.mu.Unlock()
		return
	}
	prev := a.tickCache[conID]
	update := prev
	update.Symbol = symbol
	update.Timestamp = time.Now()
	mutate(&update)
	merged := prev.Merge(update)
	a.tickCache[conID] = merged
	// Published while still holding the lock so ticks for a conID are
	// emitted in the same order as the merges that produced them.
	a.bus.Publish(models.NewTickEvent(merged))
	a.mu.Unlock()
}

func mustMarshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
	}
	return b
}
