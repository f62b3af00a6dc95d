package socketbroker

import (
	"context"
	"encoding/json"

	"janus/internal/models"
)

// QueryAccount requests an account summary snapshot.
func (a *Adapter) QueryAccount(ctx context.Context) error {
	return a.send(frame{ReqID: a.nextReqID(), Kind: frameAccountSummary})
}

// QueryPosition requests a position snapshot.
func (a *Adapter) QueryPosition(ctx context.Context) error {
	return a.send(frame{ReqID: a.nextReqID(), Kind: framePosition})
}

// QueryOpenOrders requests the set of currently open orders.
func (a *Adapter) QueryOpenOrders(ctx context.Context) error {
	return a.send(frame{ReqID: a.nextReqID(), Kind: frameOpenOrder})
}

func (a *Adapter) onPosition(fr frame) {
	var p positionPayload
	if err := json.Unmarshal(fr.Payload, &p); err != nil {
		return
	}
	direction := models.Long
	volume := p.Qty
	if p.Qty < 0 {
		direction = models.Short
		volume = -p.Qty
	}
	a.bus.Publish(models.NewPositionEvent(models.PositionData{
		AccountAlias: a.accountAlias,
		Symbol:       p.Symbol,
		Direction:    direction,
		Volume:       volume,
		Price:        p.AvgCost,
		PnL:          p.PnL,
	}))
}

// accountSnapshot accumulates partial accountSummary tags before emitting a
// single AccountData; the socket protocol reports each field as a separate
// tagged line.
type accountSnapshot struct {
	balance   float64
	available float64
	currency  string
}

func (a *Adapter) onAccountSummary(fr frame) {
	var p accountSummaryPayload
	if err := json.Unmarshal(fr.Payload, &p); err != nil {
		return
	}

	a.mu.Lock()
	if a.acctSnapshot == nil {
		a.acctSnapshot = &accountSnapshot{}
	}
	switch p.Tag {
	case "NetLiquidation":
		a.acctSnapshot.balance = parseFloat(p.Value)
	case "AvailableFunds":
		a.acctSnapshot.available = parseFloat(p.Value)
	case "Currency":
		a.acctSnapshot.currency = p.Value
	}
	snap := *a.acctSnapshot
	a.mu.Unlock()

	a.bus.Publish(models.NewAccountEvent(models.AccountData{
		AccountAlias: a.accountAlias,
		Balance:      snap.balance,
		Available:    snap.available,
		Currency:     snap.currency,
	}))
}
