package httpbroker

import (
	"time"

	"janus/internal/gateway/httpbroker/tradeeventspb"
	"janus/internal/models"
)

// mapOrderStatus implements the documented two-tier mapping: prefer the
// explicit order_status field; fall back to scene_type when order_status is
// empty or unrecognized. An empty status with matched=true marks a case
// that must not overwrite the cached status (MODIFY_SUCCESS).
func mapOrderStatus(orderStatus, sceneType string, filledQty, qty float64) (status models.OrderStatus, matched bool) {
	switch orderStatus {
	case "SUBMITTED":
		return models.StatusNotTraded, true
	case "FILLED":
		if filledQty < qty {
			return models.StatusPartTraded, true
		}
		return models.StatusAllTraded, true
	case "CANCELLED":
		return models.StatusCancelled, true
	case "FAILED":
		return models.StatusRejected, true
	}

	switch sceneType {
	case "FILLED":
		return models.StatusPartTraded, true
	case "FINAL_FILLED":
		return models.StatusAllTraded, true
	case "PLACE_FAILED", "MODIFY_FAILED", "CANCEL_FAILED":
		return models.StatusRejected, true
	case "CANCEL_SUCCESS":
		return models.StatusCancelled, true
	case "MODIFY_SUCCESS":
		return "", true // preserve: matched but status intentionally left unchanged
	}

	return "", false
}

// onOrderTradeEvent handles one ORDER/ORDER_STATUS_CHANGED payload pushed
// over the trade-events stream: resolve identity, apply the status
// mapping, clone-update-emit, then schedule a debounced snapshot refresh
// on fill (partial or full) and cancel transitions.
func (a *Adapter) onOrderTradeEvent(ev *tradeeventspb.TradeEvent) {
	if ev.EventType != "ORDER" || ev.SubscribeType != "ORDER_STATUS_CHANGED" {
		return
	}
	if ev.AccountID != "" && ev.AccountID != a.cfg.Credentials["account_id"] {
		// Foreign account on a shared credential stream; silently ignored
		// per the documented filtering behavior.
		return
	}

	key := a.resolveOrderIdentity(ev.OrderID, ev.ClientOrderID)
	status, matched := mapOrderStatus(ev.OrderStatus, ev.SceneType, ev.FilledQty, ev.Qty)
	if !matched {
		a.bus.Log("warn", name, "unmapped trade event status: order_status="+ev.OrderStatus+" scene_type="+ev.SceneType)
		return
	}

	a.orderMu.Lock()
	order, ok := a.orderCache[key]
	if !ok {
		a.orderMu.Unlock()
		return
	}
	if status != "" {
		order.Status = status
	}
	order.Traded = ev.FilledQty
	order.Timestamp = time.Now().UnixNano()
	a.orderCache[key] = order
	clone := order.Clone()
	a.orderMu.Unlock()

	a.bus.Publish(models.NewOrderEvent(clone))

	switch {
	case status == models.StatusAllTraded, status == models.StatusPartTraded, status == models.StatusCancelled:
		a.scheduleRefresh()
	}
}
