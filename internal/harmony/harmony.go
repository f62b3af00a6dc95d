// Package harmony implements the user-initiated bulk symbol reconciliation
// pass: for every connected broker kind, fill in whatever registry entries
// are still missing that broker's id.
package harmony

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"janus/internal/config"
	"janus/internal/gateway"
	"janus/internal/models"
	"janus/internal/registry"
)

// Summary aggregates the outcome of one harmony run.
type Summary struct {
	Filled           int
	SkippedAmbiguous int
	SkippedNoMatch   int
	Errors           int
}

// Harmony runs the reconciliation pass described in the orchestrator
// design: one representative gateway per connected broker kind is used to
// resolve every registry entry still missing that kind's broker id.
type Harmony struct {
	registry *registry.SymbolRegistry
	gateways map[string]gateway.Gateway // account alias -> connected gateway
	cfg      *config.Config
	log      zerolog.Logger
}

// New builds a Harmony orchestrator over the given collaborators.
func New(cfg *config.Config, reg *registry.SymbolRegistry, gateways map[string]gateway.Gateway, log zerolog.Logger) *Harmony {
	return &Harmony{registry: reg, gateways: gateways, cfg: cfg, log: log}
}

// Run iterates every canonical symbol in the registry once per connected
// broker kind, attempting auto-fill for whatever that kind is missing. A
// registry store-write failure aborts the run immediately: every fill
// already persisted before the failing write stays committed, but no
// further entries in this run are attempted.
func (h *Harmony) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	for kind, gw := range h.representativeGatewayPerKind() {
		records := h.registry.All()
		for _, rec := range records {
			missing := brokerIDMissing(kind, rec)
			if !missing {
				continue
			}

			results, err := gw.RequestContractDetails(ctx, gateway.ContractQuery{
				Symbol:     rec.Canonical,
				Exchange:   models.ExchangeSMART,
				AssetClass: models.AssetClass(rec.AssetClass),
			})
			if err != nil {
				h.log.Warn().Err(err).Str("symbol", rec.Canonical).Str("broker", string(kind)).Msg("harmony contract lookup failed")
				summary.Errors++
				continue
			}

			switch len(results) {
			case 0:
				summary.SkippedNoMatch++
				continue
			default:
				if len(results) > 1 {
					summary.SkippedAmbiguous++
					continue
				}
			}

			c := results[0]
			if err := h.fill(ctx, kind, rec.Canonical, c); err != nil {
				return summary, fmt.Errorf("harmony aborted on registry store error for %s: %w", rec.Canonical, err)
			}
			summary.Filled++
		}
	}

	return summary, nil
}

func (h *Harmony) fill(ctx context.Context, kind config.BrokerKind, canonical string, c gateway.ContractDetails) error {
	assetClass := assetClassOf(c.Contract)
	switch kind {
	case config.BrokerSocket:
		if _, err := h.registry.EnsureSocketSymbol(ctx, canonical, c.SocketConID, c.Contract.VtSymbol, string(assetClass)); err != nil {
			return err
		}
	case config.BrokerHTTP:
		if _, err := h.registry.EnsureHTTPSymbol(ctx, canonical, c.HTTPTicker, c.Contract.VtSymbol, string(assetClass)); err != nil {
			return err
		}
	}
	return nil
}

// representativeGatewayPerKind picks one connected gateway for each broker
// kind configured, since auto-fill only needs a single live connection per
// kind to resolve contract lookups — this runs per broker kind, not per
// account, per the documented orchestrator scope.
func (h *Harmony) representativeGatewayPerKind() map[config.BrokerKind]gateway.Gateway {
	out := make(map[config.BrokerKind]gateway.Gateway)
	for _, acct := range h.cfg.Accounts {
		if _, ok := out[acct.Broker]; ok {
			continue
		}
		if gw, ok := h.gateways[acct.Alias]; ok {
			out[acct.Broker] = gw
		}
	}
	return out
}

func brokerIDMissing(kind config.BrokerKind, rec registry.Record) bool {
	switch kind {
	case config.BrokerSocket:
		return rec.SocketConID == 0
	case config.BrokerHTTP:
		return rec.HTTPTicker == ""
	default:
		return false
	}
}

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
