package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quantd/internal/domain"
)

func TestSimulatorMarketOrderFillsImmediately(t *testing.T) {
	b := NewSimulatorBroker()
	conf, err := b.SubmitOrder(context.Background(), &domain.Order{
		ID: "1-1", TradeID: 1, Type: domain.OrderTypeMarket,
		Direction: domain.DirectionLong, Symbol: "XBTUSD", Size: 100, Price: 42000,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if conf.Status != domain.OrderStatusFilled || conf.FilledSize != 100 || conf.AvgPrice != 42000 {
		t.Errorf("confirmation = %+v", conf)
	}
	if b.RestingCount() != 0 {
		t.Errorf("market order left %d resting orders", b.RestingCount())
	}
}

func TestSimulatorRestingStopTriggersOnBar(t *testing.T) {
	b := NewSimulatorBroker()
	ctx := context.Background()

	// Protective stop under a long position: a sell that triggers when the
	// market trades down to it.
	conf, err := b.SubmitOrder(ctx, &domain.Order{
		ID: "1-2", TradeID: 1, Type: domain.OrderTypeStop, Metatype: domain.MetatypeStop,
		Direction: domain.DirectionShort, Symbol: "XBTUSD", Size: 100, Price: 41000,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if conf.Status != domain.OrderStatusUnfilled {
		t.Fatalf("resting order confirmed %v", conf.Status)
	}

	// A bar that never reaches the stop leaves it resting.
	fills := b.MarkBar(domain.Bar{Symbol: "XBTUSD", Timestamp: 60000, Open: 42000, High: 42100, Low: 41500, Close: 42000, Volume: 1})
	if len(fills) != 0 || b.RestingCount() != 1 {
		t.Fatalf("untouched stop produced fills %v", fills)
	}

	fills = b.MarkBar(domain.Bar{Symbol: "XBTUSD", Timestamp: 60060, Open: 41500, High: 41600, Low: 40900, Close: 41000, Volume: 1})
	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
	f := fills[0]
	if f.OrderID != "1-2" || f.Size != 100 || f.Price != 41000 || f.Timestamp != 60060 {
		t.Errorf("fill = %+v", f)
	}
	if b.RestingCount() != 0 {
		t.Errorf("triggered stop still resting")
	}
}

func TestSimulatorLimitDirections(t *testing.T) {
	b := NewSimulatorBroker()
	ctx := context.Background()

	b.SubmitOrder(ctx, &domain.Order{
		ID: "2-1", Type: domain.OrderTypeLimit,
		Direction: domain.DirectionLong, Symbol: "XBTUSD", Size: 10, Price: 41000,
	})
	b.SubmitOrder(ctx, &domain.Order{
		ID: "2-2", Type: domain.OrderTypeLimit,
		Direction: domain.DirectionShort, Symbol: "XBTUSD", Size: 10, Price: 43000,
	})

	// The bar trades down to the buy limit but never up to the sell limit.
	fills := b.MarkBar(domain.Bar{Symbol: "XBTUSD", Timestamp: 60000, Open: 42000, High: 42500, Low: 41000, Close: 42000, Volume: 1})
	if len(fills) != 1 || fills[0].OrderID != "2-1" {
		t.Fatalf("fills = %v, want only the buy limit", fills)
	}
}

func TestSimulatorIgnoresNullBarsAndOtherSymbols(t *testing.T) {
	b := NewSimulatorBroker()
	ctx := context.Background()
	b.SubmitOrder(ctx, &domain.Order{
		ID: "3-1", Type: domain.OrderTypeStop,
		Direction: domain.DirectionShort, Symbol: "XBTUSD", Size: 10, Price: 41000,
	})

	if fills := b.MarkBar(domain.Bar{Symbol: "XBTUSD", Timestamp: 60000}); fills != nil {
		t.Errorf("null bar produced fills %v", fills)
	}
	if fills := b.MarkBar(domain.Bar{Symbol: "ETHUSD", Timestamp: 60000, Open: 1, High: 1e9, Low: 0.1, Close: 1, Volume: 1}); fills != nil {
		t.Errorf("other symbol produced fills %v", fills)
	}
}

func TestSimulatorCancelRemovesRestingOrder(t *testing.T) {
	b := NewSimulatorBroker()
	ctx := context.Background()
	b.SubmitOrder(ctx, &domain.Order{
		ID: "4-1", Type: domain.OrderTypeStop,
		Direction: domain.DirectionShort, Symbol: "XBTUSD", Size: 10, Price: 41000,
	})
	if err := b.CancelOrder(ctx, "4-1"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if err := b.CancelOrder(ctx, "4-1"); err != nil {
		t.Fatalf("repeated CancelOrder: %v", err)
	}
	if b.RestingCount() != 0 {
		t.Errorf("cancelled order still resting")
	}
}

func TestRESTBrokerSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("Authorization = %q", got)
		}
		var wo wireOrder
		if err := json.NewDecoder(r.Body).Decode(&wo); err != nil {
			t.Errorf("decoding order: %v", err)
		}
		if wo.ClientID != "5-1" || wo.Side != "Sell" || wo.OrderType != "STOP" {
			t.Errorf("wire order = %+v", wo)
		}
		json.NewEncoder(w).Encode(wireConfirmation{ClientID: "5-1", Status: "New"})
	}))
	defer srv.Close()

	b := NewRESTBroker(srv.URL, "k")
	conf, err := b.SubmitOrder(context.Background(), &domain.Order{
		ID: "5-1", Type: domain.OrderTypeStop,
		Direction: domain.DirectionShort, Symbol: "XBTUSD", Size: 10, Price: 41000,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if conf.OrderID != "5-1" || conf.Status != domain.OrderStatusUnfilled {
		t.Errorf("confirmation = %+v", conf)
	}
}

func TestRESTBrokerCancelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "order not found", http.StatusNotFound)
	}))
	defer srv.Close()

	b := NewRESTBroker(srv.URL, "k")
	if err := b.CancelOrder(context.Background(), "nope"); err == nil {
		t.Fatal("CancelOrder should surface the venue error")
	}
}

func TestFromKind(t *testing.T) {
	if b, err := FromKind("", "", ""); err != nil || b.Name() != "simulator" {
		t.Fatalf("FromKind(\"\") = %v, %v, want simulator", b, err)
	}
	if b, err := FromKind("sim", "", ""); err != nil || b.Name() != "simulator" {
		t.Fatalf("FromKind(\"sim\") = %v, %v, want simulator", b, err)
	}
	if b, err := FromKind("rest", "https://venue.example/api/v1", "key"); err != nil || b.Name() != "rest" {
		t.Fatalf("FromKind(\"rest\") = %v, %v, want rest broker", b, err)
	}
	if _, err := FromKind("rest", "", ""); err == nil {
		t.Fatal("FromKind(\"rest\") without a url should fail")
	}
	if _, err := FromKind("paper", "", ""); err == nil {
		t.Fatal("FromKind with an unknown kind should fail")
	}
}
