// Package router translates an OrderIntent into a broker-specific order
// request: symbol canonicalization and auto-fill, short-sale policy, and a
// capability gate, before handing off to the target gateway's SendOrder.
package router

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"janus/internal/config"
	"janus/internal/errs"
	"janus/internal/gateway"
	"janus/internal/models"
	"janus/internal/oms"
	"janus/internal/registry"
)

// Router owns no state of its own beyond its collaborators; every Route
// call is independently resolvable from the registry, cache and gateway
// set as of the moment it runs.
type Router struct {
	cfg      *config.Config
	registry *registry.SymbolRegistry
	cache    *oms.Cache
	gateways map[string]gateway.Gateway // account alias -> connected gateway
	log      zerolog.Logger
}

// New builds a Router over the given collaborators. gateways must contain
// one entry per account alias present in cfg.Accounts that has connected.
func New(cfg *config.Config, reg *registry.SymbolRegistry, cache *oms.Cache, gateways map[string]gateway.Gateway, log zerolog.Logger) *Router {
	return &Router{cfg: cfg, registry: reg, cache: cache, gateways: gateways, log: log}
}

func normalizeSymbol(sym string) string {
	return strings.ToUpper(strings.TrimSpace(sym))
}

// Route resolves intent against the registry and the target account's
// gateway, applies the short-sale and capability policies, and forwards
// the composed OrderRequest to send_order. It never mutates the registry
// itself — that happens only via resolveBrokerID's Ensure* call.
func (r *Router) Route(ctx context.Context, intent models.OrderIntent) (string, error) {
	if err := intent.Validate(); err != nil {
		return "", errs.NewInvalidIntent(err.Error())
	}

	acctCfg, ok := r.cfg.Account(intent.AccountAlias)
	if !ok {
		return "", errs.NewInvalidIntent("unknown account alias " + intent.AccountAlias)
	}
	gw, ok := r.gateways[intent.AccountAlias]
	if !ok {
		return "", errs.NewInvalidIntent("account " + intent.AccountAlias + " has no connected gateway")
	}

	canonical := normalizeSymbol(intent.Symbol)

	exchange, err := r.resolveBrokerID(ctx, gw, acctCfg, canonical)
	if err != nil {
		return "", err
	}

	direction, err := r.applyShortSalePolicy(intent, acctCfg, canonical)
	if err != nil {
		return "", err
	}

	caps := gw.Capabilities()
	if !caps.SupportsOrderType(intent.Type) {
		return "", errs.NewCapabilityUnsupported(gw.Name(), string(intent.Type))
	}
	if !caps.SupportsTIF(intent.TIF) {
		return "", errs.NewCapabilityUnsupported(gw.Name(), string(intent.TIF))
	}
	if direction == models.Short && !caps.SupportsShort {
		return "", errs.NewCapabilityUnsupported(gw.Name(), "SHORT")
	}

	req := gateway.OrderRequest{
		AccountAlias: intent.AccountAlias,
		Symbol:       canonical,
		Exchange:     exchange,
		Direction:    direction,
		Type:         intent.Type,
		Volume:       intent.Qty,
		Price:        intent.LimitPrice,
		StopPrice:    intent.StopPrice,
		TIF:          intent.TIF,
	}
	return gw.SendOrder(ctx, req)
}

// resolveBrokerID ensures the registry carries the broker-specific id this
// account's gateway needs, auto-filling it via request_contract_details
// when missing, and returns the exchange to attach to the order request.
func (r *Router) resolveBrokerID(ctx context.Context, gw gateway.Gateway, acctCfg config.AccountConfig, canonical string) (models.Exchange, error) {
	rec, exists := r.registry.GetByCanonical(canonical)

	needsFill := !exists
	if exists {
		switch acctCfg.Broker {
		case config.BrokerSocket:
			needsFill = rec.SocketConID == 0
		case config.BrokerHTTP:
			needsFill = rec.HTTPTicker == ""
		}
	}

	if !needsFill {
		return exchangeOf(rec), nil
	}

	results, err := gw.RequestContractDetails(ctx, gateway.ContractQuery{
		Symbol:     canonical,
		Exchange:   models.ExchangeSMART,
		AssetClass: models.AssetEquity,
	})
	if err != nil {
		return "", err
	}
	if len(results) != 1 {
		return "", errs.NewRegistryAmbiguous(canonical, len(results))
	}
	c := results[0]

	switch acctCfg.Broker {
	case config.BrokerSocket:
		newRec, err := r.registry.EnsureSocketSymbol(ctx, canonical, c.SocketConID, c.Contract.VtSymbol, string(assetClassOf(c.Contract)))
		if err != nil {
			return "", err
		}
		return exchangeOf(newRec), nil
	case config.BrokerHTTP:
		newRec, err := r.registry.EnsureHTTPSymbol(ctx, canonical, c.HTTPTicker, c.Contract.VtSymbol, string(assetClassOf(c.Contract)))
		if err != nil {
			return "", err
		}
		return exchangeOf(newRec), nil
	}
	return c.Contract.Exchange, nil
}

// exchangeOf falls back to SMART when the registry record predates exchange
// tracking; the registry record itself does not carry exchange today, so
// this always reports the default routing venue.
func exchangeOf(registry.Record) models.Exchange {
	return models.ExchangeSMART
}

// assetClassOf maps a contract's product type to the registry's asset_class
// field: ETF and OPTION keep their own classes; every other product type,
// STOCK included, is recorded as equity.
func assetClassOf(c models.ContractData) models.AssetClass {
	switch strings.ToUpper(c.ProductType) {
	case "ETF":
		return models.AssetETF
	case "OPTION":
		return models.AssetOption
	default:
		return models.AssetEquity
	}
}

// applyShortSalePolicy maps an OrderIntent's wire-level Side into a
// Direction given the account's current net position, per spec §4.7 step 3.
// Explicit SHORT/COVER bypass the position check entirely.
func (r *Router) applyShortSalePolicy(intent models.OrderIntent, acctCfg config.AccountConfig, canonical string) (models.Direction, error) {
	switch intent.Side {
	case models.SideBuy:
		return models.Long, nil
	case models.SideShort:
		return models.Short, nil
	case models.SideCover:
		return models.Long, nil
	case models.SideSell:
		return r.resolveSellDirection(acctCfg, canonical)
	default:
		return "", errs.NewInvalidIntent("unknown order side " + string(intent.Side))
	}
}

func (r *Router) resolveSellDirection(acctCfg config.AccountConfig, canonical string) (models.Direction, error) {
	if longPos, ok := r.cache.Position(acctCfg.Alias, canonical, models.Long); ok && longPos.Volume > 0 {
		return models.Long, nil // SELL reduces an existing long
	}
	if shortPos, ok := r.cache.Position(acctCfg.Alias, canonical, models.Short); ok && shortPos.Volume > 0 {
		return models.Short, nil // SELL increases an existing short
	}
	if acctCfg.AllowShort {
		return models.Short, nil // flat position, short-selling allowed: opens a new short
	}
	return "", errs.NewInvalidIntent("SELL with no long position and allow_short disabled for account " + acctCfg.Alias)
}
