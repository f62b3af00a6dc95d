package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"janus/internal/errs"
	"janus/internal/gateway"
	"janus/internal/models"
)

const defaultBarInterval = "1min"

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, errorResponse{Code: errs.CodeOf(err), Message: err.Error()})
}

func (s *Server) handleSendOrderIntent(w http.ResponseWriter, r *http.Request) {
	var req sendOrderIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	vtOrderID, err := s.router.Route(r.Context(), req.toIntent())
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err)
		return
	}
	respondJSON(w, http.StatusOK, sendOrderIntentResponse{VtOrderID: vtOrderID})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	alias := accountAliasOf(req.VtOrderID)
	gw, ok := s.gateways[alias]
	if !ok {
		respondError(w, http.StatusNotFound, errs.NewUnknownAccount(alias))
		return
	}

	if err := gw.CancelOrder(r.Context(), req.VtOrderID); err != nil {
		respondError(w, http.StatusBadGateway, err)
		return
	}
	respondJSON(w, http.StatusOK, ackResponse{Status: "ack"})
}

// accountAliasOf extracts the account alias prefix from a vt_orderid of the
// form "{account_alias}.{broker_orderid}".
func accountAliasOf(vtOrderID string) string {
	if i := strings.IndexByte(vtOrderID, '.'); i >= 0 {
		return vtOrderID[:i]
	}
	return vtOrderID
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	for alias, gw := range s.gateways {
		if err := gw.QueryAccount(ctx); err != nil {
			s.log.Warn().Err(err).Str("account", alias).Msg("sync: account refresh failed")
		}
		if err := gw.QueryPosition(ctx); err != nil {
			s.log.Warn().Err(err).Str("account", alias).Msg("sync: position refresh failed")
		}
		if err := gw.QueryOpenOrders(ctx); err != nil {
			s.log.Warn().Err(err).Str("account", alias).Msg("sync: open-order refresh failed")
		}
	}
	respondJSON(w, http.StatusOK, ackResponse{Status: "ack"})
}

func (s *Server) handleHarmony(w http.ResponseWriter, r *http.Request) {
	summary, err := s.harmony.Run(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, harmonySummaryResponse{
		Filled:           summary.Filled,
		SkippedAmbiguous: summary.SkippedAmbiguous,
		SkippedNoMatch:   summary.SkippedNoMatch,
		Errors:           summary.Errors,
	})
}

func (s *Server) handleSubscribeBars(w http.ResponseWriter, r *http.Request) {
	s.dispatchBars(w, r, func(ctx context.Context, gw gateway.Gateway, req gateway.BarsRequest) error {
		return gw.SubscribeBars(ctx, req)
	})
}

func (s *Server) handleUnsubscribeBars(w http.ResponseWriter, r *http.Request) {
	s.dispatchBars(w, r, func(ctx context.Context, gw gateway.Gateway, req gateway.BarsRequest) error {
		return gw.UnsubscribeBars(ctx, req)
	})
}

func (s *Server) dispatchBars(w http.ResponseWriter, r *http.Request, call func(context.Context, gateway.Gateway, gateway.BarsRequest) error) {
	var req barsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	gw, ok := s.gateways[req.Account]
	if !ok {
		respondError(w, http.StatusNotFound, errs.NewUnknownAccount(req.Account))
		return
	}

	for _, symbol := range req.Symbols {
		// The registry carries no exchange field today; SMART is the
		// default routing venue for every bar subscription.
		req := gateway.BarsRequest{Symbol: symbol, Exchange: models.ExchangeSMART, Interval: defaultBarInterval}
		if err := call(r.Context(), gw, req); err != nil {
			respondError(w, http.StatusBadGateway, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, ackResponse{Status: "ack"})
}

func (s *Server) handleBrokerList(w http.ResponseWriter, r *http.Request) {
	accounts := s.cfg.Accounts
	out := make([]brokerInfo, 0, len(accounts))
	for i, acct := range accounts {
		out = append(out, brokerInfo{Alias: acct.Alias, Broker: string(acct.Broker), IsDefault: i == 0})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ackResponse{Status: "ok"})
}
