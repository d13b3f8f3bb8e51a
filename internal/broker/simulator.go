package broker

import (
	"context"
	"fmt"
	"sync"

	"quantd/internal/domain"
)

// Compile-time interface checks.
var (
	_ Broker    = (*SimulatorBroker)(nil)
	_ BarMarker = (*SimulatorBroker)(nil)
)

// SimulatorBroker executes orders in memory for paper trading. Market orders
// fill immediately at their stated price; limit and stop orders rest until a
// closed bar's range touches them.
type SimulatorBroker struct {
	mu      sync.Mutex
	resting map[string]*domain.Order
}

// NewSimulatorBroker creates a SimulatorBroker with no resting orders.
func NewSimulatorBroker() *SimulatorBroker {
	return &SimulatorBroker{
		resting: make(map[string]*domain.Order),
	}
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string {
	return "simulator"
}

// SubmitOrder accepts the order. Market orders are confirmed filled at once;
// everything else rests until MarkBar triggers it.
func (b *SimulatorBroker) SubmitOrder(_ context.Context, order *domain.Order) (*domain.OrderConfirmation, error) {
	if order.Size <= 0 {
		return nil, fmt.Errorf("order %s has non-positive size %v", order.ID, order.Size)
	}
	if order.Type == domain.OrderTypeMarket {
		return &domain.OrderConfirmation{
			OrderID:    order.ID,
			Status:     domain.OrderStatusFilled,
			FilledSize: order.Size,
			AvgPrice:   order.Price,
		}, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	copied := *order
	b.resting[order.ID] = &copied
	return &domain.OrderConfirmation{
		OrderID: order.ID,
		Status:  domain.OrderStatusUnfilled,
	}, nil
}

// CancelOrder removes a resting order. Cancelling an unknown or already
// executed order is a no-op.
func (b *SimulatorBroker) CancelOrder(_ context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.resting, orderID)
	return nil
}

// RestingCount reports how many orders are waiting for a trigger.
func (b *SimulatorBroker) RestingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.resting)
}

// MarkBar executes every resting order for the bar's symbol whose trigger
// price falls within the bar's range, filling it fully at its own price.
// Null bars carry no range and trigger nothing.
func (b *SimulatorBroker) MarkBar(bar domain.Bar) []domain.Fill {
	if bar.IsNull() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var fills []domain.Fill
	for id, o := range b.resting {
		if o.Symbol != bar.Symbol || !triggered(o, bar) {
			continue
		}
		fills = append(fills, domain.Fill{
			OrderID:   o.ID,
			TradeID:   o.TradeID,
			Symbol:    o.Symbol,
			Direction: o.Direction,
			Size:      o.Size - o.FilledSize,
			Price:     o.Price,
			Timestamp: bar.Timestamp,
		})
		delete(b.resting, id)
	}
	return fills
}

// triggered reports whether the bar's range reached the order's price. A buy
// limit and a sell stop wait for the market to come down; a sell limit and a
// buy stop wait for it to come up.
func triggered(o *domain.Order, bar domain.Bar) bool {
	buying := o.Direction == domain.DirectionLong
	switch o.Type {
	case domain.OrderTypeLimit:
		if buying {
			return bar.Low <= o.Price
		}
		return bar.High >= o.Price
	case domain.OrderTypeStop, domain.OrderTypeStopLimit:
		if buying {
			return bar.High >= o.Price
		}
		return bar.Low <= o.Price
	default:
		return false
	}
}
