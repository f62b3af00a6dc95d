package httpbroker

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"janus/internal/errs"
	"janus/internal/gateway"
	"janus/internal/models"
)

func orderTypeToWire(t models.OrderType) (string, bool) {
	switch t {
	case models.OrderMarket:
		return "MARKET", true
	case models.OrderLimit:
		return "LIMIT", true
	case models.OrderStop:
		return "STOP", true
	default:
		return "", false // no native STOP_LIMIT; capability gate rejects upstream
	}
}

func directionToAction(d models.Direction) string {
	if d == models.Short {
		return "SELL"
	}
	return "BUY"
}

type placeOrderRequest struct {
	ClientOrderID string  `json:"client_order_id"`
	Ticker        string  `json:"ticker"`
	Action        string  `json:"action"`
	OrderType     string  `json:"order_type"`
	Qty           float64 `json:"qty"`
	LimitPrice    float64 `json:"limit_price,omitempty"`
	StopPrice     float64 `json:"stop_price,omitempty"`
	TIF           string  `json:"tif"`
}

type placeOrderResponse struct {
	OrderID string `json:"order_id"`
}

// SendOrder caches a local OrderData with status SUBMITTING, emits it
// synchronously, then issues the HTTP place-order call. The client order id
// <-> broker order id pair is recorded before the call returns so trade
// events referencing only order_id can still be resolved.
func (a *Adapter) SendOrder(ctx context.Context, req gateway.OrderRequest) (string, error) {
	if req.Type == models.OrderStopLimit {
		return "", errs.NewCapabilityUnsupported(name, "STOP_LIMIT")
	}
	wireType, ok := orderTypeToWire(req.Type)
	if !ok {
		return "", errs.NewCapabilityUnsupported(name, string(req.Type))
	}

	a.mu.RLock()
	ticker, known := a.tickerBySymbol[req.Symbol]
	a.mu.RUnlock()
	if !known {
		results, err := a.RequestContractDetails(ctx, gateway.ContractQuery{Symbol: req.Symbol, Exchange: req.Exchange})
		if err != nil {
			return "", err
		}
		if len(results) != 1 {
			return "", errs.NewRegistryAmbiguous(req.Symbol, len(results))
		}
		ticker = results[0].HTTPTicker
	}

	clientOrderID := uuid.NewString()
	tif := req.TIF
	if tif == "" {
		tif = models.TIFGTC
	}

	order := models.OrderData{
		VtOrderID:    a.orderCacheKey(clientOrderID),
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
	a.orderCache[order.VtOrderID] = order
	a.orderMu.Unlock()
	a.bus.Publish(models.NewOrderEvent(order.Clone()))

	var resp placeOrderResponse
	err := a.doJSON(ctx, http.MethodPost, "/orders", placeOrderRequest{
		ClientOrderID: clientOrderID,
		Ticker:        ticker,
		Action:        directionToAction(req.Direction),
		OrderType:     wireType,
		Qty:           req.Volume,
		LimitPrice:    req.Price,
		StopPrice:     req.StopPrice,
		TIF:           string(tif),
	}, &resp)
	if err != nil {
		a.markRejected(order.VtOrderID, err)
		return "", err
	}

	if resp.OrderID != "" {
		// Capture both directions of the client_order_id <-> order_id
		// mapping so a later trade event identified only by order_id can
		// still be traced back to this order's stable cache key, per the
		// documented order-id resolution priority.
		a.mu.Lock()
		a.clientOrderMap[clientOrderID] = resp.OrderID
		a.brokerToClient[resp.OrderID] = clientOrderID
		a.mu.Unlock()
	}

	return order.VtOrderID, nil
}

// resolveOrderIdentity applies the documented priority (payload orderId
// resolved through the gateway's order_id -> client_order_id map, else the
// payload client_order_id itself) and returns the orderCache key. The
// cache is keyed by client_order_id, assigned once at send_order time; the
// broker-assigned order_id is never used to re-key it, and serves as the
// key only when a payload carries no client_order_id at all.
func (a *Adapter) resolveOrderIdentity(orderID, clientOrderID string) string {
	if orderID != "" {
		a.mu.RLock()
		cid, ok := a.brokerToClient[orderID]
		a.mu.RUnlock()
		if ok {
			return a.orderCacheKey(cid)
		}
		if clientOrderID == "" {
			return a.orderCacheKey(orderID)
		}
	}
	return a.orderCacheKey(clientOrderID)
}

// CancelOrder requests cancellation of a previously sent order.
func (a *Adapter) CancelOrder(ctx context.Context, vtOrderID string) error {
	brokerOrderID := models.BrokerOrderID(vtOrderID)
	return a.doJSON(ctx, http.MethodPost, "/orders/"+brokerOrderID+"/cancel", nil, nil)
}

func (a *Adapter) markRejected(vtOrderID string, cause error) {
	a.orderMu.Lock()
	order, ok := a.orderCache[vtOrderID]
	if !ok {
		a.orderMu.Unlock()
		return
	}
	order.Status = models.StatusRejected
	order.Timestamp = time.Now().UnixNano()
	a.orderCache[vtOrderID] = order
	clone := order.Clone()
	a.orderMu.Unlock()

	a.bus.Publish(models.NewOrderEvent(clone))
	a.bus.Log("warn", name, "order rejected: "+cause.Error())
}
