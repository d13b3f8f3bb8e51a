package builtins

import (
	"context"
	"testing"

	"quantd/internal/domain"
)

func feedCloses(t *testing.T, s *SMACross, symbol string, closes []float64) []domain.Signal {
	t.Helper()
	ctx := context.Background()
	var all []domain.Signal
	for i, c := range closes {
		bar := domain.Bar{
			Symbol: symbol, Timestamp: int64(60000 + i*60),
			Open: c, High: c, Low: c, Close: c, Volume: 1,
		}
		signals, err := s.OnBar(ctx, bar)
		if err != nil {
			t.Fatalf("OnBar: %v", err)
		}
		all = append(all, signals...)
	}
	return all
}

func TestSMACrossEmitsOnCrossover(t *testing.T) {
	s := NewSMACross("bitmex", 2, 4)

	// Flat then rising: the short SMA crosses above the long SMA once.
	signals := feedCloses(t, s, "XBTUSD", []float64{10, 10, 10, 10, 10, 12, 14, 16})
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	sig := signals[0]
	if sig.Direction != domain.DirectionLong {
		t.Errorf("Direction = %v, want long", sig.Direction)
	}
	if sig.Strategy != "sma-cross" || sig.Venue != "bitmex" || sig.Symbol != "XBTUSD" {
		t.Errorf("signal identity = %+v", sig)
	}
	if sig.EntryType != domain.OrderTypeMarket {
		t.Errorf("EntryType = %v, want market", sig.EntryType)
	}
}

func TestSMACrossDownCross(t *testing.T) {
	s := NewSMACross("bitmex", 2, 4)

	signals := feedCloses(t, s, "XBTUSD", []float64{10, 12, 14, 16, 14, 10, 8})
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	if signals[0].Direction != domain.DirectionShort {
		t.Errorf("Direction = %v, want short", signals[0].Direction)
	}
}

func TestSMACrossIgnoresNullBarsAndShortHistory(t *testing.T) {
	s := NewSMACross("bitmex", 2, 4)
	ctx := context.Background()

	signals, err := s.OnBar(ctx, domain.Bar{Symbol: "XBTUSD", Timestamp: 60000})
	if err != nil || signals != nil {
		t.Fatalf("null bar: signals=%v err=%v", signals, err)
	}
	// Two bars of history cannot fill a 4-period window.
	signals = feedCloses(t, s, "XBTUSD", []float64{10, 11})
	if len(signals) != 0 {
		t.Fatalf("got %d signals with insufficient history", len(signals))
	}
}

func TestSMACrossTracksSymbolsIndependently(t *testing.T) {
	s := NewSMACross("bitmex", 2, 4)

	feedCloses(t, s, "XBTUSD", []float64{10, 10, 10, 10, 10})
	signals := feedCloses(t, s, "ETHUSD", []float64{10, 11})
	if len(signals) != 0 {
		t.Fatalf("ETHUSD inherited XBTUSD history: %v", signals)
	}
}
