package socketbroker

import "encoding/json"

// frameKind tags the payload carried by a wire frame. The wire format is a
// framed, reqid-tagged JSON protocol carried over a persistent WebSocket,
// mirroring the shape of a native socket API while letting the adapter use
// a standard streaming client instead of a hand-rolled TCP framer.
type frameKind string

const (
	frameTickPrice        frameKind = "tickPrice"
	frameTickSize         frameKind = "tickSize"
	frameTickString       frameKind = "tickString"
	frameTickSnapshotEnd  frameKind = "tickSnapshotEnd"
	frameOpenOrder        frameKind = "openOrder"
	frameOrderStatus      frameKind = "orderStatus"
	frameExecDetails      frameKind = "execDetails"
	framePosition         frameKind = "position"
	framePositionEnd      frameKind = "positionEnd"
	frameAccountSummary   frameKind = "accountSummary"
	frameContractDetails  frameKind = "contractDetails"
	frameContractDetailsEnd frameKind = "contractDetailsEnd"
	frameError            frameKind = "error"
	frameConnectionStatus frameKind = "connectionStatus"
)

// frame is one message exchanged over the WebSocket connection.
type frame struct {
	ReqID   int64           `json:"req_id"`
	Kind    frameKind       `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type tickPricePayload struct {
	ConID int64   `json:"con_id"`
	Field string  `json:"field"` // "last", "bid", "ask"
	Price float64 `json:"price"`
}

type tickSizePayload struct {
	ConID int64   `json:"con_id"`
	Field string  `json:"field"` // "bid_size", "ask_size", "volume"
	Size  float64 `json:"size"`
}

type openOrderPayload struct {
	OrderID      string  `json:"order_id"`
	ConID        int64   `json:"con_id"`
	Action       string  `json:"action"`
	OrderType    string  `json:"order_type"`
	TotalQty     float64 `json:"total_qty"`
	LimitPrice   float64 `json:"limit_price"`
	AuxPrice     float64 `json:"aux_price"`
	TIF          string  `json:"tif"`
}

type orderStatusPayload struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"status"`
	Filled  float64 `json:"filled"`
}

type execDetailsPayload struct {
	ExecID  string  `json:"exec_id"`
	OrderID string  `json:"order_id"`
	ConID   int64   `json:"con_id"`
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
	Shares  float64 `json:"shares"`
}

type positionPayload struct {
	ConID   int64   `json:"con_id"`
	Symbol  string  `json:"symbol"`
	Qty     float64 `json:"qty"`
	AvgCost float64 `json:"avg_cost"`
	PnL     float64 `json:"pnl"`
}

type accountSummaryPayload struct {
	Tag   string  `json:"tag"` // "NetLiquidation", "AvailableFunds", "Currency"
	Value string  `json:"value"`
}

type contractDetailsPayload struct {
	ConID      int64  `json:"con_id"`
	Symbol     string `json:"symbol"`
	AssetClass string `json:"asset_class"`
	Exchange   string `json:"exchange"`
	Currency   string `json:"currency"`
	PriceTick  float64 `json:"price_tick"`
}

type errorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type connectionStatusPayload struct {
	Status string `json:"status"` // "farm_connected", "farm_disconnected"
}

type subscribeCommand struct {
	ConID int64  `json:"con_id"`
	Mode  string `json:"mode"` // "quote", "full"
}

type placeOrderCommand struct {
	ConID      int64   `json:"con_id"`
	Action     string  `json:"action"`
	OrderType  string  `json:"order_type"`
	TotalQty   float64 `json:"total_qty"`
	LimitPrice float64 `json:"limit_price"`
	AuxPrice   float64 `json:"aux_price"`
	TIF        string  `json:"tif"`
}
