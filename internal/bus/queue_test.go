package bus

import (
	"errors"
	"testing"

	"quantd/internal/domain"
)

func TestPublishDrainFIFO(t *testing.T) {
	q := NewQueue(8)
	first := domain.NewMarketEvent(domain.Bar{Symbol: "XBTUSD", Timestamp: 1700003400})
	second := domain.NewSignalEvent(domain.Signal{Symbol: "XBTUSD"})
	if err := q.Publish(first); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := q.Publish(second); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	var got []domain.Event
	if err := q.Drain(func(e domain.Event) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(got) != 2 || got[0].ID() != first.ID() || got[1].ID() != second.ID() {
		t.Fatalf("drained %d events out of order", len(got))
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d after drain, want 0", q.Len())
	}
}

func TestDrainProcessesCascadedEvents(t *testing.T) {
	q := NewQueue(8)
	q.Publish(domain.NewMarketEvent(domain.Bar{Symbol: "XBTUSD", Timestamp: 1700003400}))

	var kinds []domain.EventKind
	err := q.Drain(func(e domain.Event) error {
		kinds = append(kinds, e.Kind())
		if e.Kind() == domain.EventMarket {
			// A handler reacting to the market event raises a signal; the
			// same drain must carry it through.
			return q.Publish(domain.NewSignalEvent(domain.Signal{Symbol: "XBTUSD"}))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	want := []domain.EventKind{domain.EventMarket, domain.EventSignal}
	if len(kinds) != len(want) || kinds[0] != want[0] || kinds[1] != want[1] {
		t.Fatalf("drained kinds = %v, want %v", kinds, want)
	}
}

func TestPublishFullQueue(t *testing.T) {
	q := NewQueue(1)
	if err := q.Publish(domain.NewMarketEvent(domain.Bar{Symbol: "XBTUSD", Timestamp: 60000})); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := q.Publish(domain.NewMarketEvent(domain.Bar{Symbol: "XBTUSD", Timestamp: 60060})); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Publish on full queue = %v, want ErrQueueFull", err)
	}
}

func TestPublishAfterClose(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	q.Close() // idempotent
	if err := q.Publish(domain.NewMarketEvent(domain.Bar{Symbol: "XBTUSD", Timestamp: 60000})); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Publish after close = %v, want ErrQueueClosed", err)
	}
}

func TestDrainStopsOnHandlerError(t *testing.T) {
	q := NewQueue(4)
	q.Publish(domain.NewMarketEvent(domain.Bar{Symbol: "XBTUSD", Timestamp: 60000}))
	q.Publish(domain.NewMarketEvent(domain.Bar{Symbol: "XBTUSD", Timestamp: 60060}))

	boom := errors.New("boom")
	err := q.Drain(func(domain.Event) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Drain = %v, want handler error", err)
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d after aborted drain, want 1", q.Len())
	}
}
