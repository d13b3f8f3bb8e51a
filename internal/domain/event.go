package domain

import "github.com/google/uuid"

// EventKind discriminates the event variants carried on the bus.
type EventKind string

const (
	EventMarket EventKind = "market"
	EventSignal EventKind = "signal"
	EventOrder  EventKind = "order"
	EventFill   EventKind = "fill"
)

// Event is the tagged variant passed through the event queue. Each concrete
// event carries an immutable payload and is consumed exactly once, in FIFO
// order per queue.
type Event interface {
	Kind() EventKind
	ID() string
}

// MarketEvent wraps one freshly built bar.
type MarketEvent struct {
	EventID string
	Bar     Bar
}

func (e MarketEvent) Kind() EventKind { return EventMarket }
func (e MarketEvent) ID() string      { return e.EventID }

// SignalEvent wraps a strategy signal bound for the portfolio.
type SignalEvent struct {
	EventID string
	Signal  Signal
}

func (e SignalEvent) Kind() EventKind { return EventSignal }
func (e SignalEvent) ID() string      { return e.EventID }

// OrderEvent wraps an order bound for the broker. The order is a value copy;
// the portfolio keeps the authoritative record.
type OrderEvent struct {
	EventID string
	Order   Order
}

func (e OrderEvent) Kind() EventKind { return EventOrder }
func (e OrderEvent) ID() string      { return e.EventID }

// FillEvent wraps an execution report bound for the portfolio.
type FillEvent struct {
	EventID string
	Fill    Fill
}

func (e FillEvent) Kind() EventKind { return EventFill }
func (e FillEvent) ID() string      { return e.EventID }

// NewMarketEvent builds a MarketEvent with a fresh event id.
func NewMarketEvent(bar Bar) MarketEvent {
	return MarketEvent{EventID: uuid.NewString(), Bar: bar}
}

// NewSignalEvent builds a SignalEvent with a fresh event id.
func NewSignalEvent(sig Signal) SignalEvent {
	return SignalEvent{EventID: uuid.NewString(), Signal: sig}
}

// NewOrderEvent builds an OrderEvent with a fresh event id.
func NewOrderEvent(o Order) OrderEvent {
	return OrderEvent{EventID: uuid.NewString(), Order: o}
}

// NewFillEvent builds a FillEvent with a fresh event id.
func NewFillEvent(f Fill) FillEvent {
	return FillEvent{EventID: uuid.NewString(), Fill: f}
}
