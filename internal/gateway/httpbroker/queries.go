package httpbroker

import (
	"context"
	"net/http"

	"janus/internal/models"
)

type accountSnapshotResponse struct {
	Balance   float64 `json:"balance"`
	Available float64 `json:"available"`
	Currency  string  `json:"currency"`
}

// QueryAccount fetches and emits the current account balance snapshot.
func (a *Adapter) QueryAccount(ctx context.Context) error {
	var resp accountSnapshotResponse
	if err := a.doJSON(ctx, http.MethodGet, "/account", nil, &resp); err != nil {
		return err
	}
	a.bus.Publish(models.NewAccountEvent(models.AccountData{
		AccountAlias: a.accountAlias,
		Balance:      resp.Balance,
		Available:    resp.Available,
		Currency:     resp.Currency,
	}))
	return nil
}

type positionSnapshotResponse struct {
	Positions []struct {
		Symbol  string  `json:"symbol"`
		Qty     float64 `json:"qty"`
		AvgCost float64 `json:"avg_cost"`
		PnL     float64 `json:"pnl"`
	} `json:"positions"`
}

// QueryPosition fetches and emits one PositionData per open position.
// Zero-volume entries are still emitted; the OMS cache evicts them.
func (a *Adapter) QueryPosition(ctx context.Context) error {
	var resp positionSnapshotResponse
	if err := a.doJSON(ctx, http.MethodGet, "/positions", nil, &resp); err != nil {
		return err
	}
	for _, p := range resp.Positions {
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
	return nil
}

type openOrdersResponse struct {
	Orders []struct {
		OrderID       string  `json:"order_id"`
		ClientOrderID string  `json:"client_order_id"`
		Symbol        string  `json:"symbol"`
		Action        string  `json:"action"`
		OrderType     string  `json:"order_type"`
		Qty           float64 `json:"qty"`
		FilledQty     float64 `json:"filled_qty"`
		LimitPrice    float64 `json:"limit_price"`
		StopPrice     float64 `json:"stop_price"`
		Status        string  `json:"status"`
		TIF           string  `json:"tif"`
	} `json:"orders"`
}

// QueryOpenOrders fetches and emits the current open-order snapshot,
// backfilling the local cache exactly as an openOrder callback would.
func (a *Adapter) QueryOpenOrders(ctx context.Context) error {
	var resp openOrdersResponse
	if err := a.doJSON(ctx, http.MethodGet, "/orders?status=open", nil, &resp); err != nil {
		return err
	}

	for _, o := range resp.Orders {
		key := a.resolveOrderIdentity(o.OrderID, o.ClientOrderID)
		status, ok := mapOrderStatus(o.Status, "", o.FilledQty, o.Qty)
		if !ok {
			continue
		}

		a.mu.Lock()
		if o.OrderID != "" && o.ClientOrderID != "" {
			a.clientOrderMap[o.ClientOrderID] = o.OrderID
			a.brokerToClient[o.OrderID] = o.ClientOrderID
		}
		a.mu.Unlock()

		direction := models.Long
		if o.Action == "SELL" {
			direction = models.Short
		}

		a.orderMu.Lock()
		order, existed := a.orderCache[key]
		if !existed {
			order = models.OrderData{VtOrderID: key, AccountAlias: a.accountAlias, Symbol: o.Symbol, Direction: direction}
		}
		order.Volume = o.Qty
		order.Traded = o.FilledQty
		order.Price = o.LimitPrice
		order.StopPrice = o.StopPrice
		order.Status = status
		order.TIF = models.TimeInForce(o.TIF)
		a.orderCache[key] = order
		clone := order.Clone()
		a.orderMu.Unlock()

		a.bus.Publish(models.NewOrderEvent(clone))
	}
	return nil
}
