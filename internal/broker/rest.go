package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"quantd/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*RESTBroker)(nil)

// RESTBroker routes orders to the venue's REST order API.
type RESTBroker struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRESTBroker creates a RESTBroker for the given venue endpoint and
// credentials.
func NewRESTBroker(baseURL, apiKey string) *RESTBroker {
	return &RESTBroker{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Name returns "rest".
func (b *RESTBroker) Name() string {
	return "rest"
}

type wireOrder struct {
	ClientID  string  `json:"clOrdID"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	OrderType string  `json:"ordType"`
	Qty       float64 `json:"orderQty"`
	Price     float64 `json:"price,omitempty"`
}

type wireConfirmation struct {
	ClientID  string  `json:"clOrdID"`
	Status    string  `json:"ordStatus"`
	FilledQty float64 `json:"cumQty"`
	AvgPrice  float64 `json:"avgPx"`
}

// SubmitOrder posts the order to the venue and maps its acknowledgement.
func (b *RESTBroker) SubmitOrder(ctx context.Context, order *domain.Order) (*domain.OrderConfirmation, error) {
	side := "Buy"
	if order.Direction == domain.DirectionShort {
		side = "Sell"
	}
	body, err := json.Marshal(wireOrder{
		ClientID:  order.ID,
		Symbol:    order.Symbol,
		Side:      side,
		OrderType: string(order.Type),
		Qty:       order.Size,
		Price:     order.Price,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding order %s: %w", order.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submitting order %s: %w", order.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("submitting order %s: status %d: %s", order.ID, resp.StatusCode, snippet)
	}

	var wc wireConfirmation
	if err := json.NewDecoder(resp.Body).Decode(&wc); err != nil {
		return nil, fmt.Errorf("decoding confirmation for %s: %w", order.ID, err)
	}
	return &domain.OrderConfirmation{
		OrderID:    wc.ClientID,
		Status:     mapStatus(wc.Status, wc.FilledQty),
		FilledSize: wc.FilledQty,
		AvgPrice:   wc.AvgPrice,
	}, nil
}

// CancelOrder deletes the order on the venue.
func (b *RESTBroker) CancelOrder(ctx context.Context, orderID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, b.baseURL+"/orders/"+orderID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("cancelling order %s: %w", orderID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("cancelling order %s: status %d: %s", orderID, resp.StatusCode, snippet)
	}
	return nil
}

func mapStatus(wire string, filled float64) domain.OrderStatus {
	switch wire {
	case "Filled":
		return domain.OrderStatusFilled
	case "Canceled":
		return domain.OrderStatusCancelled
	default:
		if filled > 0 {
			return domain.OrderStatusPartial
		}
		return domain.OrderStatusUnfilled
	}
}
