package rpc

import (
	"janus/internal/models"
)

// wirePublisher subscribes the hub to every EventBus event type and fans
// each one out under its documented topic name, plus a per-symbol suffixed
// variant for tick events so a client can subscribe narrowly client-side
// even though the server itself does not filter.
func (s *Server) wirePublisher() {
	s.bus.SubscribeAll(func(ev models.Event) {
		switch ev.Type {
		case models.EventTick:
			s.hub.Broadcast("eTick", ev.Tick)
			s.hub.Broadcast("eTick."+ev.Tick.Symbol, ev.Tick)
		case models.EventOrder:
			s.hub.Broadcast("eOrder", ev.Order)
		case models.EventTrade:
			s.hub.Broadcast("eTrade", ev.Trade)
		case models.EventPosition:
			s.hub.Broadcast("ePosition", ev.Position)
		case models.EventAccount:
			s.hub.Broadcast("eAccount", ev.Account)
		case models.EventContract:
			s.hub.Broadcast("eContract", ev.Contract)
		case models.EventLog:
			s.hub.Broadcast("eLog", ev.Log)
		case models.EventTimer:
			s.hub.Broadcast("heartbeat", nil)
		}
	})
}
