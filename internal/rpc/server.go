// Package rpc exposes the server's request/reply surface over HTTP and a
// WebSocket event publisher that fans out every EventBus event to
// subscribed clients, per the external interface contract.
package rpc

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"janus/internal/config"
	"janus/internal/eventbus"
	"janus/internal/gateway"
	"janus/internal/harmony"
	"janus/internal/oms"
	"janus/internal/registry"
	"janus/internal/router"
)

// Server is the RPC surface: a REST router for request/reply methods plus
// a WebSocket hub the publisher broadcasts through.
type Server struct {
	log zerolog.Logger

	mux  *mux.Router
	hub  *Hub
	http *http.Server

	cfg      *config.Config
	registry *registry.SymbolRegistry
	cache    *oms.Cache
	bus      *eventbus.Bus
	router   *router.Router
	harmony  *harmony.Harmony
	gateways map[string]gateway.Gateway
}

// New builds a Server over the given collaborators and wires its routes.
// It does not start listening; call Start for that.
func New(cfg *config.Config, reg *registry.SymbolRegistry, cache *oms.Cache, bus *eventbus.Bus, rt *router.Router, hm *harmony.Harmony, gateways map[string]gateway.Gateway, log zerolog.Logger) *Server {
	s := &Server{
		log:      log,
		mux:      mux.NewRouter(),
		hub:      newHub(log),
		cfg:      cfg,
		registry: reg,
		cache:    cache,
		bus:      bus,
		router:   rt,
		harmony:  hm,
		gateways: gateways,
	}
	s.setupRoutes()
	s.wirePublisher()
	return s
}

func (s *Server) setupRoutes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleSendOrderIntent).Methods(http.MethodPost)
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods(http.MethodPost)
	api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)
	api.HandleFunc("/harmony", s.handleHarmony).Methods(http.MethodPost)
	api.HandleFunc("/bars/subscribe", s.handleSubscribeBars).Methods(http.MethodPost)
	api.HandleFunc("/bars/unsubscribe", s.handleUnsubscribeBars).Methods(http.MethodPost)
	api.HandleFunc("/brokers", s.handleBrokerList).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.mux.HandleFunc("/ws", s.handleWebSocket)
}

// Handler returns the CORS-wrapped root handler, suitable for
// http.ListenAndServe or httptest.NewServer.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})
	return c.Handler(s.mux)
}

// Start starts the HTTP listener and blocks until the server stops or
// errors. Stop accepting new requests is the first step of the documented
// shutdown sequence; callers should call Shutdown from a signal handler.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.Handler()}
	s.log.Info().Str("addr", addr).Msg("rpc server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting new requests and waits for in-flight ones to
// finish, per the documented shutdown order's first step.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
