// Package server bootstraps every collaborator — registry, event bus, OMS
// cache, one adapter per configured account, router, harmony orchestrator
// and RPC surface — and owns the documented startup and shutdown sequence.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"janus/internal/config"
	"janus/internal/eventbus"
	"janus/internal/gateway"
	"janus/internal/gateway/httpbroker"
	"janus/internal/gateway/socketbroker"
	"janus/internal/harmony"
	"janus/internal/oms"
	"janus/internal/registry"
	"janus/internal/rpc"
	"janus/internal/router"
)

// Server owns every long-lived collaborator for one janusd process.
type Server struct {
	cfg   *config.Config
	log   zerolog.Logger
	store registry.Store

	registry *registry.SymbolRegistry
	bus      *eventbus.Bus
	cache    *oms.Cache
	gateways map[string]gateway.Gateway
	router   *router.Router
	harmony  *harmony.Harmony
	rpc      *rpc.Server

	rpcAddr string
}

// New constructs every collaborator but does not connect gateways or start
// listening; call Run for that.
func New(cfg *config.Config, store registry.Store, rpcAddr string, log zerolog.Logger) (*Server, error) {
	reg, err := registry.NewSymbolRegistry(context.Background(), store, log)
	if err != nil {
		return nil, fmt.Errorf("loading symbol registry: %w", err)
	}

	bus := eventbus.New(log)
	cache := oms.New(bus)

	gateways := make(map[string]gateway.Gateway, len(cfg.Accounts))
	for _, acct := range cfg.Accounts {
		switch acct.Broker {
		case config.BrokerSocket:
			gateways[acct.Alias] = socketbroker.New(acct.Alias, bus, log, cfg.Global)
		case config.BrokerHTTP:
			gateways[acct.Alias] = httpbroker.New(acct.Alias, bus, log, cfg.Global)
		default:
			return nil, fmt.Errorf("account %q: unknown broker kind %q", acct.Alias, acct.Broker)
		}
	}

	rt := router.New(cfg, reg, cache, gateways, log)
	hm := harmony.New(cfg, reg, gateways, log)
	rpcSrv := rpc.New(cfg, reg, cache, bus, rt, hm, gateways, log)

	return &Server{
		cfg:      cfg,
		log:      log,
		store:    store,
		registry: reg,
		bus:      bus,
		cache:    cache,
		gateways: gateways,
		router:   rt,
		harmony:  hm,
		rpc:      rpcSrv,
		rpcAddr:  rpcAddr,
	}, nil
}

// Run starts the event bus, connects every configured gateway, and serves
// RPC until ctx is cancelled, at which point it performs the documented
// shutdown sequence: stop accepting RPC requests, stop the event bus,
// close every gateway, then close the registry store.
func (s *Server) Run(ctx context.Context) error {
	s.bus.Start()

	var wg sync.WaitGroup
	for _, acct := range s.cfg.Accounts {
		acct := acct
		gw := s.gateways[acct.Alias]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gw.Connect(ctx, acct); err != nil {
				s.log.Error().Err(err).Str("account", acct.Alias).Msg("gateway connect failed")
			}
		}()
	}
	wg.Wait()

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.rpc.Start(s.rpcAddr) }()

	select {
	case err := <-serveErr:
		if err != nil {
			s.shutdown()
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.rpc.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("rpc shutdown error")
		}
		<-serveErr
	}

	s.shutdown()
	return nil
}

// shutdown stops the event bus, closes every gateway, and closes the
// registry store, in that order, per the documented sequence.
func (s *Server) shutdown() {
	s.bus.Stop()
	for alias, gw := range s.gateways {
		if err := gw.Close(); err != nil {
			s.log.Warn().Err(err).Str("account", alias).Msg("gateway close error")
		}
	}
	if err := s.registry.Close(); err != nil {
		s.log.Warn().Err(err).Msg("registry store close error")
	}
}
