package models

// EventType tags the payload carried by an Event.
type EventType string

const (
	EventTick     EventType = "TICK"
	EventOrder    EventType = "ORDER"
	EventTrade    EventType = "TRADE"
	EventPosition EventType = "POSITION"
	EventAccount  EventType = "ACCOUNT"
	EventContract EventType = "CONTRACT"
	EventLog      EventType = "LOG"
	EventTimer    EventType = "TIMER"
)

// LogPayload carries a structured log line through the event bus so that
// RPC subscribers can tail server activity the same way they tail ticks.
type LogPayload struct {
	Level   string
	Message string
	Gateway string
}

// Event is the single envelope type pushed through the EventBus. Exactly one
// of the payload fields is populated, selected by Type; consumers switch on
// Type rather than probing fields.
type Event struct {
	Type     EventType
	Tick     *TickData
	Order    *OrderData
	Trade    *TradeData
	Position *PositionData
	Account  *AccountData
	Contract *ContractData
	Log      *LogPayload
}

// NewTickEvent wraps a tick snapshot as an Event.
func NewTickEvent(t TickData) Event { return Event{Type: EventTick, Tick: &t} }

// NewOrderEvent wraps an order snapshot as an Event. The caller must pass an
// already-cloned OrderData; NewOrderEvent does not clone on its own.
func NewOrderEvent(o OrderData) Event { return Event{Type: EventOrder, Order: &o} }

// NewTradeEvent wraps a fill as an Event.
func NewTradeEvent(t TradeData) Event { return Event{Type: EventTrade, Trade: &t} }

// NewPositionEvent wraps a position snapshot as an Event.
func NewPositionEvent(p PositionData) Event { return Event{Type: EventPosition, Position: &p} }

// NewAccountEvent wraps an account snapshot as an Event.
func NewAccountEvent(a AccountData) Event { return Event{Type: EventAccount, Account: &a} }

// NewContractEvent wraps a contract lookup result as an Event.
func NewContractEvent(c ContractData) Event { return Event{Type: EventContract, Contract: &c} }

// NewLogEvent wraps a log line as an Event.
func NewLogEvent(level, gateway, message string) Event {
	return Event{Type: EventLog, Log: &LogPayload{Level: level, Gateway: gateway, Message: message}}
}

// NewTimerEvent produces a bare timer tick, carrying no payload.
func NewTimerEvent() Event { return Event{Type: EventTimer} }
