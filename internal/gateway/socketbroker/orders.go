package socketbroker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"janus/internal/errs"
	"janus/internal/gateway"
	"janus/internal/models"
)

func orderTypeToWire(t models.OrderType) string {
	switch t {
	case models.OrderMarket:
		return "MKT"
	case models.OrderLimit:
		return "LMT"
	case models.OrderStop:
		return "STP"
	case models.OrderStopLimit:
		return "STP LMT"
	default:
		return "MKT"
	}
}

func directionToAction(d models.Direction) string {
	if d == models.Short {
		return "SELL"
	}
	return "BUY"
}

// wireStatusToOrderStatus maps the documented broker-B status vocabulary.
// Unknown statuses are reported by the caller logging once and leaving the
// cached status unchanged.
func wireStatusToOrderStatus(status string) (models.OrderStatus, bool) {
	switch status {
	case "Submitted", "PreSubmitted":
		return models.StatusNotTraded, true
	case "Filled":
		return models.StatusAllTraded, true // caller downgrades to PARTTRADED if traded < volume
	case "Cancelled", "ApiCancelled":
		return models.StatusCancelled, true
	case "Inactive":
		return models.StatusRejected, true
	default:
		return "", false
	}
}

// SendOrder caches a local OrderData with status SUBMITTING, emits it
// synchronously, then schedules the network send.
func (a *Adapter) SendOrder(ctx context.Context, req gateway.OrderRequest) (string, error) {
	if req.Type == models.OrderStop && req.StopPrice == 0 {
		return "", errs.NewInvalidIntent("stop order requires a stop price")
	}
	if req.Type == models.OrderStopLimit && (req.StopPrice == 0 || req.Price == 0) {
		return "", errs.NewInvalidIntent("stop-limit order requires both stop and limit prices")
	}

	a.mu.RLock()
	conID, ok := a.conIDBySymbol[req.Symbol]
	a.mu.RUnlock()
	if !ok {
		results, err := a.RequestContractDetails(ctx, gateway.ContractQuery{Symbol: req.Symbol, Exchange: req.Exchange})
		if err != nil {
			return "", err
		}
		if len(results) != 1 {
			return "", errs.NewRegistryAmbiguous(req.Symbol, len(results))
		}
		conID = results[0].SocketConID
	}

	vtOrderID := newVtOrderID(req.AccountAlias)
	tif := req.TIF
	if tif == "" {
		tif = models.TIFGTC
	}

	order := models.OrderData{
		VtOrderID:    vtOrderID,
		AccountAlias: req.AccountAlias,
		Symbol:       req.Symbol,
		Exchange:     req.Exchange,
		Direction:    req.Direction,
		Type:         req.Type,
		Volume:       req.Volume,
		Price:        req.Price,
		StopPrice:    req.StopPrice,
		Status:       models.StatusSubmitting,
		TIF:          tif,
		Timestamp:    time.Now().UnixNano(),
	}

	a.orderMu.Lock()
	a.orderCache[vtOrderID] = order
	a.orderMu.Unlock()
	a.bus.Publish(models.NewOrderEvent(order.Clone()))

	go func() {
		err := a.send(frame{
			ReqID: a.nextReqID(),
			Kind:  frameOpenOrder,
			Payload: mustMarshal(struct {
				OrderID string `json:"order_id"`
				placeOrderCommand
			}{
				OrderID: models.BrokerOrderID(vtOrderID),
				placeOrderCommand: placeOrderCommand{
					ConID:      conID,
					Action:     directionToAction(req.Direction),
					OrderType:  orderTypeToWire(req.Type),
					TotalQty:   req.Volume,
					LimitPrice: req.Price,
					AuxPrice:   req.StopPrice,
					TIF:        string(tif),
				},
			}),
		})
		if err != nil {
			a.bus.Log("warn", name, "order send failed: "+err.Error())
		}
	}()

	return vtOrderID, nil
}

// CancelOrder requests cancellation of a previously sent order.
func (a *Adapter) CancelOrder(ctx context.Context, vtOrderID string) error {
	return a.send(frame{
		ReqID: a.nextReqID(),
		Kind:  frameOrderStatus,
		Payload: mustMarshal(struct {
			OrderID string `json:"order_id"`
			Cancel  bool   `json:"cancel"`
		}{OrderID: models.BrokerOrderID(vtOrderID), Cancel: true}),
	})
}

func (a *Adapter) orderCacheKey(brokerOrderID string) string {
	return models.MakeVtOrderID(a.accountAlias, brokerOrderID)
}

// onOpenOrder backfills the remaining fields of a cached order.
func (a *Adapter) onOpenOrder(fr frame) {
	var p openOrderPayload
	if err := json.Unmarshal(fr.Payload, &p); err != nil {
		return
	}
	key := a.orderCacheKey(p.OrderID)

	a.orderMu.Lock()
	order, ok := a.orderCache[key]
	if !ok {
		order = models.OrderData{VtOrderID: key, AccountAlias: a.accountAlias, Status: models.StatusSubmitting}
	}
	order.Volume = p.TotalQty
	order.Price = p.LimitPrice
	order.StopPrice = p.AuxPrice
	order.Timestamp = time.Now().UnixNano()
	a.orderCache[key] = order
	clone := order.Clone()
	a.orderMu.Unlock()

	a.bus.Publish(models.NewOrderEvent(clone))
}

// onOrderStatus updates only (status, traded), per the protocol's merge
// contract; unknown statuses leave the cached status unchanged and log
// once.
func (a *Adapter) onOrderStatus(fr frame) {
	var p orderStatusPayload
	if err := json.Unmarshal(fr.Payload, &p); err != nil {
		return
	}
	key := a.orderCacheKey(p.OrderID)

	mapped, known := wireStatusToOrderStatus(p.Status)

	a.orderMu.Lock()
	order, ok := a.orderCache[key]
	if !ok {
		a.orderMu.Unlock()
		if !known {
			a.bus.Log("warn", name, "order status for unknown order: "+p.OrderID)
		}
		return
	}
	if !known {
		a.orderMu.Unlock()
		a.bus.Log("warn", name, "unmapped order status: "+p.Status)
		return
	}
	if mapped == models.StatusAllTraded && p.Filled < order.Volume {
		mapped = models.StatusPartTraded
	}
	order.Status = mapped
	order.Traded = p.Filled
	order.Timestamp = time.Now().UnixNano()
	a.orderCache[key] = order
	clone := order.Clone()
	a.orderMu.Unlock()

	a.bus.Publish(models.NewOrderEvent(clone))
}

// onExecDetails emits a trade fill. It never modifies order status.
func (a *Adapter) onExecDetails(fr frame) {
	var p execDetailsPayload
	if err := json.Unmarshal(fr.Payload, &p); err != nil {
		return
	}
	a.mu.RLock()
	symbol := a.symbolByConID[p.ConID]
	a.mu.RUnlock()

	direction := models.Long
	if p.Side == "SLD" {
		direction = models.Short
	}

	a.bus.Publish(models.NewTradeEvent(models.TradeData{
		VtTradeID: uuid.NewString(),
		VtOrderID: a.orderCacheKey(p.OrderID),
		Symbol:    symbol,
		Direction: direction,
		Price:     p.Price,
		Volume:    p.Shares,
		Timestamp: time.Now().UnixNano(),
	}))
}
