// Package oms maintains the authoritative in-memory snapshot of orders,
// trades, positions, accounts and contracts, built entirely from EventBus
// dispatch. It never calls back into a gateway.
package oms

import (
	"sync"

	"janus/internal/eventbus"
	"janus/internal/models"
)

// Cache is written only by the EventBus worker goroutine that drives its
// subscriptions; all exported read methods take a read lock and return
// snapshots safe to keep beyond the call.
type Cache struct {
	mu sync.RWMutex

	ordersByVt    map[string]models.OrderData
	activeOrders  map[string]models.OrderData
	tradesByVt    map[string]models.TradeData
	positionsByKey map[string]models.PositionData
	accountsByAlias map[string]models.AccountData
	contractsByVt map[string]models.ContractData
}

// New creates an empty Cache and subscribes it to the relevant event types
// on bus.
func New(bus *eventbus.Bus) *Cache {
	c := &Cache{
		ordersByVt:      make(map[string]models.OrderData),
		activeOrders:    make(map[string]models.OrderData),
		tradesByVt:      make(map[string]models.TradeData),
		positionsByKey:  make(map[string]models.PositionData),
		accountsByAlias: make(map[string]models.AccountData),
		contractsByVt:   make(map[string]models.ContractData),
	}

	bus.Subscribe(models.EventOrder, c.onOrder)
	bus.Subscribe(models.EventTrade, c.onTrade)
	bus.Subscribe(models.EventPosition, c.onPosition)
	bus.Subscribe(models.EventAccount, c.onAccount)
	bus.Subscribe(models.EventContract, c.onContract)

	return c
}

func (c *Cache) onOrder(ev models.Event) {
	o := *ev.Order
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ordersByVt[o.VtOrderID] = o
	if o.IsActive() {
		c.activeOrders[o.VtOrderID] = o
	} else {
		delete(c.activeOrders, o.VtOrderID)
	}
}

func (c *Cache) onTrade(ev models.Event) {
	tr := *ev.Trade
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tradesByVt[tr.VtTradeID] = tr
}

func (c *Cache) onPosition(ev models.Event) {
	p := *ev.Position
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.Volume == 0 {
		delete(c.positionsByKey, p.Key())
		return
	}
	c.positionsByKey[p.Key()] = p
}

func (c *Cache) onAccount(ev models.Event) {
	a := *ev.Account
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accountsByAlias[a.AccountAlias] = a
}

func (c *Cache) onContract(ev models.Event) {
	cd := *ev.Contract
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contractsByVt[cd.VtSymbol] = cd
}

// Order returns the last known snapshot for vtOrderID.
func (c *Cache) Order(vtOrderID string) (models.OrderData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.ordersByVt[vtOrderID]
	return o, ok
}

// ActiveOrders returns every order still considered working.
func (c *Cache) ActiveOrders() []models.OrderData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.OrderData, 0, len(c.activeOrders))
	for _, o := range c.activeOrders {
		out = append(out, o)
	}
	return out
}

// Trade returns the fill recorded for vtTradeID.
func (c *Cache) Trade(vtTradeID string) (models.TradeData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tradesByVt[vtTradeID]
	return t, ok
}

// Positions returns every non-zero position currently held.
func (c *Cache) Positions() []models.PositionData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.PositionData, 0, len(c.positionsByKey))
	for _, p := range c.positionsByKey {
		out = append(out, p)
	}
	return out
}

// Position returns the position for one account/symbol/direction tuple.
func (c *Cache) Position(accountAlias, symbol string, direction models.Direction) (models.PositionData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.positionsByKey[(models.PositionData{AccountAlias: accountAlias, Symbol: symbol, Direction: direction}).Key()]
	return p, ok
}

// Account returns the last balance snapshot for accountAlias.
func (c *Cache) Account(accountAlias string) (models.AccountData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.accountsByAlias[accountAlias]
	return a, ok
}

// Contract returns the cached contract details for vtSymbol.
func (c *Cache) Contract(vtSymbol string) (models.ContractData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cd, ok := c.contractsByVt[vtSymbol]
	return cd, ok
}
