package rpc

import "janus/internal/models"

// sendOrderIntentRequest is the wire shape for POST /api/v1/orders.
type sendOrderIntentRequest struct {
	AccountAlias string  `json:"account_alias"`
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"`
	Type         string  `json:"type"`
	Qty          float64 `json:"qty"`
	LimitPrice   float64 `json:"limit_price,omitempty"`
	StopPrice    float64 `json:"stop_price,omitempty"`
	TIF          string  `json:"tif,omitempty"`
}

func (r sendOrderIntentRequest) toIntent() models.OrderIntent {
	tif := models.TimeInForce(r.TIF)
	if tif == "" {
		tif = models.TIFDay
	}
	return models.OrderIntent{
		AccountAlias: r.AccountAlias,
		Symbol:       r.Symbol,
		Side:         models.Side(r.Side),
		Type:         models.OrderType(r.Type),
		Qty:          r.Qty,
		LimitPrice:   r.LimitPrice,
		StopPrice:    r.StopPrice,
		TIF:          tif,
	}
}

type sendOrderIntentResponse struct {
	VtOrderID string `json:"vt_orderid"`
}

type cancelOrderRequest struct {
	VtOrderID string `json:"vt_orderid"`
}

type harmonySummaryResponse struct {
	Filled           int `json:"filled"`
	SkippedAmbiguous int `json:"skipped_ambiguous"`
	SkippedNoMatch   int `json:"skipped_no_match"`
	Errors           int `json:"errors"`
}

type barsRequest struct {
	Symbols []string `json:"symbols"`
	Account string   `json:"account"`
	RTH     bool     `json:"rth"`
}

type brokerInfo struct {
	Alias     string `json:"alias"`
	Broker    string `json:"broker"`
	IsDefault bool   `json:"is_default"`
}

// errorResponse is the RPC error envelope: every non-2xx response body has
// this shape so clients can branch on Code without parsing Message.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ackResponse struct {
	Status string `json:"status"`
}
