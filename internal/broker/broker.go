// Package broker defines the Broker interface and provides implementations
// for routing portfolio orders to an execution venue.
package broker

import (
	"context"
	"fmt"

	"quantd/internal/domain"
)

// Broker abstracts order routing. SubmitOrder returns the venue's immediate
// confirmation; later state changes arrive as confirmations through the
// venue's own channels.
type Broker interface {
	// Name returns the broker identifier (e.g. "rest", "simulator").
	Name() string

	// SubmitOrder sends an order for execution and returns the venue's
	// acknowledgement of its state.
	SubmitOrder(ctx context.Context, order *domain.Order) (*domain.OrderConfirmation, error)

	// CancelOrder requests cancellation of an open order by its ID.
	CancelOrder(ctx context.Context, orderID string) error
}

// FromKind builds the broker named by kind. An empty kind selects the
// simulator; "rest" routes orders to the venue's order API at restURL.
func FromKind(kind, restURL, apiKey string) (Broker, error) {
	switch kind {
	case "", "sim":
		return NewSimulatorBroker(), nil
	case "rest":
		if restURL == "" {
			return nil, fmt.Errorf("rest broker requires a venue rest url")
		}
		return NewRESTBroker(restURL, apiKey), nil
	default:
		return nil, fmt.Errorf("unknown broker kind %q", kind)
	}
}

// BarMarker is implemented by brokers that execute resting orders against
// closed bars rather than a live venue. The scheduler feeds it every built
// bar and publishes the resulting fills.
type BarMarker interface {
	MarkBar(bar domain.Bar) []domain.Fill
}
