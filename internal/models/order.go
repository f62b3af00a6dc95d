package models

import "fmt"

// OrderData is the canonical, immutable-once-dispatched order snapshot.
// Once an OrderData has been handed to on_order/EventBus, it must never be
// mutated in place; updates are produced by cloning and applying a delta.
type OrderData struct {
	VtOrderID    string
	AccountAlias string
	Symbol       string
	Exchange     Exchange
	Direction    Direction
	Type         OrderType
	Volume       float64
	Price        float64
	StopPrice    float64
	Traded       float64
	Status       OrderStatus
	TIF          TimeInForce
	Timestamp    int64 // unix nanos
}

// Clone returns a detached copy of o, safe for an adapter to mutate before
// emitting as a brand-new value.
func (o OrderData) Clone() OrderData {
	return o
}

// IsActive reports whether this order still belongs to the OMS active set.
func (o OrderData) IsActive() bool {
	return o.Status.IsActive()
}

// BrokerOrderID extracts the broker-local order id from a vt_orderid of the
// form "{account_alias}.{broker_orderid}".
func BrokerOrderID(vtOrderID string) string {
	for i := 0; i < len(vtOrderID); i++ {
		if vtOrderID[i] == '.' {
			return vtOrderID[i+1:]
		}
	}
	return vtOrderID
}

// MakeVtOrderID composes the server-lifetime-unique order identifier.
func MakeVtOrderID(accountAlias, brokerOrderID string) string {
	return fmt.Sprintf("%s.%s", accountAlias, brokerOrderID)
}

// OrderIntent is the wire-level input to the order router, produced by a
// terminal client or the RPC layer from a parsed CLI command.
type OrderIntent struct {
	AccountAlias string
	Symbol       string // canonical symbol
	Side         Side
	Type         OrderType
	Qty          float64
	LimitPrice   float64 // optional, required for LIMIT / STOP_LIMIT
	StopPrice    float64 // optional, required for STOP / STOP_LIMIT
	TIF          TimeInForce
}

// Validate checks the structural preconditions an OrderIntent must satisfy
// before the router attempts symbol resolution, independent of registry or
// capability state.
func (oi OrderIntent) Validate() error {
	if oi.Symbol == "" {
		return fmt.Errorf("order intent missing symbol")
	}
	if oi.Qty <= 0 {
		return fmt.Errorf("order intent quantity must be positive")
	}
	switch oi.Type {
	case OrderLimit:
		if oi.LimitPrice <= 0 {
			return fmt.Errorf("limit order requires a limit price")
		}
	case OrderStop:
		if oi.StopPrice <= 0 {
			return fmt.Errorf("stop order requires a stop price")
		}
	case OrderStopLimit:
		if oi.StopPrice <= 0 || oi.LimitPrice <= 0 {
			return fmt.Errorf("stop-limit order requires both a stop and a limit price")
		}
	case OrderMarket:
		// no price fields required
	default:
		return fmt.Errorf("unknown order type %q", oi.Type)
	}
	return nil
}

// TradeData is an append-only fill record.
type TradeData struct {
	VtTradeID string
	VtOrderID string
	Symbol    string
	Direction Direction
	Price     float64
	Volume    float64
	Timestamp int64
}

// PositionData is the last snapshot pushed by a broker for one
// account/symbol/direction tuple. Zero-volume entries are evicted by the
// OMS cache rather than retained.
type PositionData struct {
	AccountAlias string
	Symbol       string
	Direction    Direction
	Volume       float64
	Price        float64
	PnL          float64
	Frozen       float64
}

// Key identifies a position uniquely within the OMS cache.
func (p PositionData) Key() string {
	return fmt.Sprintf("%s.%s.%s", p.AccountAlias, p.Symbol, p.Direction)
}

// AccountData is the last balance snapshot pushed by a broker for an
// account.
type AccountData struct {
	AccountAlias string
	Balance      float64
	Available    float64
	Currency     string
}
