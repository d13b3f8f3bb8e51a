// Package scheduler drives the minute cycle: build bars at each minute
// boundary, push them through the event queue, and persist the results. It
// owns the only goroutine that mutates pipeline state; integrity repairs run
// on a separate goroutine it supervises.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"quantd/internal/broker"
	"quantd/internal/bus"
	"quantd/internal/domain"
	"quantd/internal/metrics"
	"quantd/internal/store"
	"quantd/internal/strategy"
)

// State is the scheduler's observable phase within a cycle.
type State string

const (
	StateIdle      State = "idle"
	StateWaiting   State = "waiting"
	StateProducing State = "producing"
	StateDraining  State = "draining"
)

const minuteStep = 60

// BarProducer builds the bars for one closed minute.
type BarProducer interface {
	Build(minuteStart int64) []domain.Bar
}

// TradeManager is the portfolio surface the scheduler dispatches into.
type TradeManager interface {
	OnSignal(ctx context.Context, sig domain.Signal) ([]*domain.Order, error)
	OnFill(ctx context.Context, fill domain.Fill) error
	OnOrderConfirmation(ctx context.Context, conf domain.OrderConfirmation) (*domain.Fill, error)
}

// Repairer runs a data-integrity repair for one symbol.
type Repairer interface {
	Repair(ctx context.Context, symbol string) error
}

// Config carries the scheduler's tunables.
type Config struct {
	Symbols         []string
	IntegrityEveryN int
}

// Scheduler coordinates one cycle per minute.
type Scheduler struct {
	cfg        Config
	queue      *bus.Queue
	builder    BarProducer
	strategies *strategy.Registry
	trades     TradeManager
	broker     broker.Broker
	bars       store.BarStore
	repairer   Repairer
	log        *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	state            atomic.Value // State
	cycles           int
	integrityRunning atomic.Bool
}

// New assembles a scheduler. The repairer may be nil to disable periodic
// integrity runs.
func New(cfg Config, queue *bus.Queue, builder BarProducer, strategies *strategy.Registry,
	trades TradeManager, brk broker.Broker, bars store.BarStore, repairer Repairer) *Scheduler {
	s := &Scheduler{
		cfg:        cfg,
		queue:      queue,
		builder:    builder,
		strategies: strategies,
		trades:     trades,
		broker:     brk,
		bars:       bars,
		repairer:   repairer,
		log:        slog.Default().With("component", "scheduler"),
		now:        time.Now,
		sleep:      sleepCtx,
	}
	s.state.Store(StateIdle)
	return s
}

// State reports the scheduler's current phase.
func (s *Scheduler) State() State {
	return s.state.Load().(State)
}

// Run executes minute cycles until the context is cancelled. The minute in
// progress at startup is partial and is never built; the first cycle covers
// the first full minute after start.
func (s *Scheduler) Run(ctx context.Context) error {
	minuteStart := (s.now().Unix()/minuteStep + 1) * minuteStep
	s.log.Info("scheduler started", "first_minute", minuteStart, "symbols", s.cfg.Symbols)

	for {
		s.state.Store(StateWaiting)
		closeAt := time.Unix(minuteStart+minuteStep, 0)
		if err := s.sleep(ctx, closeAt.Sub(s.now())); err != nil {
			s.state.Store(StateIdle)
			return err
		}
		if err := s.RunCycle(ctx, minuteStart); err != nil {
			s.state.Store(StateIdle)
			return err
		}
		minuteStart += minuteStep
	}
}

// RunCycle builds, dispatches and persists one closed minute. Bars reach the
// store only after every event raised by the cycle has drained, so a crash
// mid-cycle never persists a minute whose consequences were lost.
func (s *Scheduler) RunCycle(ctx context.Context, minuteStart int64) error {
	s.state.Store(StateProducing)
	bars := s.builder.Build(minuteStart)
	for _, bar := range bars {
		if marker, ok := s.broker.(broker.BarMarker); ok {
			for _, fill := range marker.MarkBar(bar) {
				if err := s.queue.Publish(domain.NewFillEvent(fill)); err != nil {
					return fmt.Errorf("publishing fill for order %s: %w", fill.OrderID, err)
				}
			}
		}
		if err := s.queue.Publish(domain.NewMarketEvent(bar)); err != nil {
			return fmt.Errorf("publishing bar %s@%d: %w", bar.Symbol, bar.Timestamp, err)
		}
	}

	s.state.Store(StateDraining)
	if err := s.queue.Drain(func(e domain.Event) error {
		return s.dispatch(ctx, e)
	}); err != nil {
		return fmt.Errorf("draining minute %d: %w", minuteStart, err)
	}

	if len(bars) > 0 {
		if err := s.bars.UpsertBars(ctx, bars); err != nil {
			return fmt.Errorf("persisting minute %d: %w", minuteStart, err)
		}
	}

	s.cycles++
	if s.cfg.IntegrityEveryN > 0 && s.cycles%s.cfg.IntegrityEveryN == 0 {
		s.maybeRunIntegrity(ctx)
	}
	s.state.Store(StateIdle)
	return nil
}

// dispatch routes one event to its consumer. Events raised by a consumer go
// back on the queue and are handled within the same drain.
func (s *Scheduler) dispatch(ctx context.Context, e domain.Event) error {
	metrics.EventsDispatchedTotal.WithLabelValues(string(e.Kind())).Inc()

	switch ev := e.(type) {
	case domain.MarketEvent:
		for _, strat := range s.strategies.All() {
			signals, err := strat.OnBar(ctx, ev.Bar)
			if err != nil {
				return fmt.Errorf("strategy %s on bar %s@%d: %w", strat.Name(), ev.Bar.Symbol, ev.Bar.Timestamp, err)
			}
			for _, sig := range signals {
				if err := s.queue.Publish(domain.NewSignalEvent(sig)); err != nil {
					return err
				}
			}
		}

	case domain.SignalEvent:
		orders, err := s.trades.OnSignal(ctx, ev.Signal)
		if err != nil {
			return err
		}
		for _, o := range orders {
			if err := s.queue.Publish(domain.NewOrderEvent(*o)); err != nil {
				return err
			}
		}

	case domain.OrderEvent:
		conf, err := s.broker.SubmitOrder(ctx, &ev.Order)
		if err != nil {
			// A venue rejection voids the order but not the engine.
			s.log.Error("order submission failed", "order", ev.Order.ID, "error", err)
			return nil
		}
		fill, err := s.trades.OnOrderConfirmation(ctx, *conf)
		if err != nil {
			return err
		}
		if fill != nil {
			return s.queue.Publish(domain.NewFillEvent(*fill))
		}

	case domain.FillEvent:
		return s.trades.OnFill(ctx, ev.Fill)

	default:
		s.log.Warn("event of unknown kind dropped", "kind", e.Kind(), "id", e.ID())
	}
	return nil
}

// maybeRunIntegrity starts a repair pass on its own goroutine. A pass still
// running when the next one is due makes the new pass wait for a later cycle.
func (s *Scheduler) maybeRunIntegrity(ctx context.Context) {
	if s.repairer == nil {
		return
	}
	if !s.integrityRunning.CompareAndSwap(false, true) {
		s.log.Warn("integrity pass still running, deferred")
		return
	}
	go func() {
		defer s.integrityRunning.Store(false)
		for _, symbol := range s.cfg.Symbols {
			if err := s.repairer.Repair(ctx, symbol); err != nil {
				s.log.Error("integrity repair failed", "symbol", symbol, "error", err)
			}
		}
	}()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
