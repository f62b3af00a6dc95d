// Package gateway defines the BrokerGateway contract shared by every
// adapter family and the capability matrix the order router gates on.
package gateway

import (
	"context"

	"janus/internal/config"
	"janus/internal/models"
)

// SubscribeRequest asks a gateway to start or stop streaming ticks for one
// canonical symbol.
type SubscribeRequest struct {
	Symbol     string
	Exchange   models.Exchange
	AssetClass models.AssetClass
}

// BarsRequest asks a gateway to start or stop streaming aggregated bars.
type BarsRequest struct {
	Symbol   string
	Exchange models.Exchange
	Interval string // e.g. "1min", "5min"
}

// ContractQuery is a synchronous broker-side contract lookup, used by the
// registry and the router to resolve a canonical symbol the first time it
// is seen.
type ContractQuery struct {
	Symbol     string
	Exchange   models.Exchange
	AssetClass models.AssetClass
}

// ContractDetails is one candidate returned by RequestContractDetails. Only
// one of SocketConID/HTTPTicker is populated, matching the gateway that
// answered the query.
type ContractDetails struct {
	Contract    models.ContractData
	SocketConID int64
	HTTPTicker  string
}

// OrderRequest is the broker-facing order, produced by the router once a
// canonical symbol has been resolved to this gateway's broker-local id.
type OrderRequest struct {
	AccountAlias string
	Symbol       string
	Exchange     models.Exchange
	Direction    models.Direction
	Type         models.OrderType
	Volume       float64
	Price        float64
	StopPrice    float64
	TIF          models.TimeInForce
}

// Capabilities describes what an adapter family can execute, so the router
// can reject an OrderIntent before ever reaching the broker.
type Capabilities struct {
	OrderTypes    []models.OrderType
	TIFs          []models.TimeInForce
	SupportsShort bool
}

// SupportsOrderType reports whether ot is in the capability set.
func (c Capabilities) SupportsOrderType(ot models.OrderType) bool {
	for _, t := range c.OrderTypes {
		if t == ot {
			return true
		}
	}
	return false
}

// SupportsTIF reports whether tif is in the capability set.
func (c Capabilities) SupportsTIF(tif models.TimeInForce) bool {
	for _, t := range c.TIFs {
		if t == tif {
			return true
		}
	}
	return false
}

// Gateway is the contract every broker adapter implements. All methods
// return promptly; side effects surface later through on_* callbacks which
// the adapter publishes onto the shared EventBus. Connect performs a first
// snapshot burst of {account, positions, open_orders} before returning;
// contracts are not part of that burst and are only fetched on demand via
// RequestContractDetails.
type Gateway interface {
	Name() string
	Capabilities() Capabilities

	Connect(ctx context.Context, cfg config.AccountConfig) error
	Close() error

	Subscribe(ctx context.Context, req SubscribeRequest) error
	Unsubscribe(ctx context.Context, req SubscribeRequest) error
	SubscribeBars(ctx context.Context, req BarsRequest) error
	UnsubscribeBars(ctx context.Context, req BarsRequest) error

	SendOrder(ctx context.Context, req OrderRequest) (string, error)
	CancelOrder(ctx context.Context, vtOrderID string) error

	QueryAccount(ctx context.Context) error
	QueryPosition(ctx context.Context) error
	QueryOpenOrders(ctx context.Context) error

	RequestContractDetails(ctx context.Context, query ContractQuery) ([]ContractDetails, error)
}
