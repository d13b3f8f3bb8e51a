// Package portfolio owns the trade lifecycle: signals become trades with
// entry, stop and take-profit orders, fills move them through their states,
// and every mutation is persisted as a whole document.
package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"quantd/internal/domain"
	"quantd/internal/metrics"
	"quantd/internal/store"
)

// Portfolio is the state machine over one persisted PortfolioDocument. All
// mutating methods are serialized; callers may share one instance across
// goroutines.
type Portfolio struct {
	mu    sync.Mutex
	doc   *domain.PortfolioDocument
	store store.PortfolioStore
	risk  RiskPolicy
	log   *slog.Logger
}

// Load restores the portfolio document for id from the store, starting a
// fresh one when none has been persisted yet.
func Load(ctx context.Context, st store.PortfolioStore, id string, risk RiskPolicy) (*Portfolio, error) {
	doc, err := st.LoadPortfolio(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading portfolio %q: %w", id, err)
	}
	if doc == nil {
		doc = domain.NewPortfolioDocument(id)
	}
	return &Portfolio{
		doc:   doc,
		store: st,
		risk:  risk,
		log:   slog.Default().With("component", "portfolio", "portfolio", id),
	}, nil
}

// Document returns a deep snapshot of the current document.
func (p *Portfolio) Document() *domain.PortfolioDocument {
	p.mu.Lock()
	defer p.mu.Unlock()
	snapshot := *p.doc
	snapshot.Trades = make(map[int64]*domain.Trade, len(p.doc.Trades))
	for id, t := range p.doc.Trades {
		copied := *t
		copied.Orders = make(map[string]*domain.Order, len(t.Orders))
		for oid, o := range t.Orders {
			oc := *o
			copied.Orders[oid] = &oc
		}
		if t.Position != nil {
			pos := *t.Position
			copied.Position = &pos
		}
		snapshot.Trades[id] = &copied
	}
	return &snapshot
}

// OnSignal opens a new trade for the signal and returns its orders in
// submission order, entry first. A signal for a symbol and strategy that
// already has a live trade is dropped, as is one the risk policy sizes to
// zero.
func (p *Portfolio) OnSignal(ctx context.Context, sig domain.Signal) ([]*domain.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range p.doc.Trades {
		if !t.Complete && t.Symbol == sig.Symbol && t.Strategy == sig.Strategy {
			p.log.Info("signal dropped, trade already live",
				"symbol", sig.Symbol, "strategy", sig.Strategy, "trade", t.ID)
			return nil, nil
		}
	}

	stopPrice := p.risk.StopPrice(sig)
	size := p.risk.PositionSize(sig, stopPrice)
	if size <= 0 {
		p.log.Warn("signal dropped, sized to zero",
			"symbol", sig.Symbol, "strategy", sig.Strategy, "entry", sig.EntryPrice, "stop", stopPrice)
		return nil, nil
	}

	tradeID := p.doc.NextTradeID
	p.doc.NextTradeID++

	trade := &domain.Trade{
		ID:             tradeID,
		Direction:      sig.Direction,
		Venue:          sig.Venue,
		Symbol:         sig.Symbol,
		Strategy:       sig.Strategy,
		EntryTimestamp: sig.Timestamp,
		Orders:         make(map[string]*domain.Order),
	}

	seq := 0
	nextID := func() string {
		seq++
		return fmt.Sprintf("%d-%d", tradeID, seq)
	}
	exit := sig.Direction.Opposite()

	orders := []*domain.Order{{
		ID:        nextID(),
		TradeID:   tradeID,
		Metatype:  domain.MetatypeEntry,
		Type:      sig.EntryType,
		Direction: sig.Direction,
		Symbol:    sig.Symbol,
		Size:      size,
		Price:     sig.EntryPrice,
		Status:    domain.OrderStatusUnfilled,
	}, {
		ID:        nextID(),
		TradeID:   tradeID,
		Metatype:  domain.MetatypeStop,
		Type:      domain.OrderTypeStop,
		Direction: exit,
		Symbol:    sig.Symbol,
		Size:      size,
		Price:     stopPrice,
		Status:    domain.OrderStatusUnfilled,
	}}
	for _, tp := range p.risk.TakeProfits(sig, stopPrice) {
		orders = append(orders, &domain.Order{
			ID:        nextID(),
			TradeID:   tradeID,
			Metatype:  domain.MetatypeTakeProfit,
			Type:      domain.OrderTypeLimit,
			Direction: exit,
			Symbol:    sig.Symbol,
			Size:      size * tp.Weight,
			Price:     tp.Price,
			VoidPrice: stopPrice,
			Status:    domain.OrderStatusUnfilled,
		})
	}
	for _, o := range orders {
		trade.Orders[o.ID] = o
	}
	p.doc.Trades[tradeID] = trade

	if err := p.persist(ctx); err != nil {
		return nil, err
	}
	p.log.Info("trade opened",
		"trade", tradeID, "symbol", sig.Symbol, "direction", sig.Direction,
		"size", size, "entry", sig.EntryPrice, "stop", stopPrice, "orders", len(orders))
	return orders, nil
}

// OnFill merges a fill into its order and advances the trade. An entry fill
// establishes the position, a stop fill closes the trade, and a take-profit
// fill shrinks the position, closing the trade when nothing remains. Fills
// for unknown trades or orders are dropped.
func (p *Portfolio) OnFill(ctx context.Context, fill domain.Fill) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	trade, ok := p.doc.Trades[fill.TradeID]
	if !ok {
		p.log.Warn("fill for unknown trade", "order", fill.OrderID, "trade", fill.TradeID)
		return nil
	}
	order, ok := trade.Orders[fill.OrderID]
	if !ok {
		p.log.Warn("fill for unknown order", "order", fill.OrderID, "trade", fill.TradeID)
		return nil
	}
	if !order.Open() {
		p.log.Warn("fill for settled order", "order", fill.OrderID, "status", order.Status)
		return nil
	}

	order.FilledSize += fill.Size
	if order.FilledSize >= order.Size {
		order.Status = domain.OrderStatusFilled
	} else {
		order.Status = domain.OrderStatusPartial
	}

	switch order.Metatype {
	case domain.MetatypeEntry:
		p.applyEntryFill(trade, fill)
	case domain.MetatypeStop:
		p.realize(trade, fill)
		p.completeTrade(trade)
	case domain.MetatypeTakeProfit:
		p.realize(trade, fill)
		if trade.Active && (trade.Position == nil || trade.Position.Size <= 0) {
			p.completeTrade(trade)
		}
	}

	return p.persist(ctx)
}

func (p *Portfolio) applyEntryFill(trade *domain.Trade, fill domain.Fill) {
	wasActive := trade.Active
	if trade.Position == nil {
		trade.Position = &domain.Position{
			TradeID:    trade.ID,
			Direction:  trade.Direction,
			Size:       fill.Size,
			EntryPrice: fill.Price,
		}
	} else {
		pos := trade.Position
		total := pos.Size + fill.Size
		pos.EntryPrice = (pos.EntryPrice*pos.Size + fill.Price*fill.Size) / total
		pos.Size = total
	}
	trade.Position.Value = trade.Position.Size * trade.Position.EntryPrice
	trade.Active = true
	if !wasActive {
		metrics.TradesOpenedTotal.WithLabelValues(trade.Symbol, string(trade.Direction)).Inc()
		p.log.Info("position opened",
			"trade", trade.ID, "symbol", trade.Symbol, "size", trade.Position.Size, "price", fill.Price)
	}
}

// realize books the closed-out part of the position against an exit fill.
func (p *Portfolio) realize(trade *domain.Trade, fill domain.Fill) {
	if trade.Position == nil {
		return
	}
	pos := trade.Position
	closed := fill.Size
	if closed > pos.Size {
		closed = pos.Size
	}
	sign := 1.0
	if trade.Direction == domain.DirectionShort {
		sign = -1.0
	}
	trade.PnL += (fill.Price - pos.EntryPrice) * closed * sign
	pos.Size -= closed
	pos.Value = pos.Size * pos.EntryPrice
}

// completeTrade finishes a trade: remaining open orders are cancelled, the
// position is cleared, and the trade is marked complete. Completing an
// already complete trade is a no-op.
func (p *Portfolio) completeTrade(trade *domain.Trade) {
	if trade.Complete {
		return
	}
	for _, o := range trade.OpenOrders() {
		o.Status = domain.OrderStatusCancelled
	}
	trade.Position = nil
	trade.Active = false
	trade.Complete = true
	metrics.TradesCompletedTotal.WithLabelValues(trade.Symbol).Inc()
	p.log.Info("trade complete", "trade", trade.ID, "symbol", trade.Symbol, "pnl", trade.PnL)
}

// OnOrderConfirmation merges a venue confirmation into its order. When the
// confirmation reports more filled size than the portfolio has seen, the
// difference is returned as a synthesized fill for the caller to publish;
// the same confirmation replayed returns nothing.
func (p *Portfolio) OnOrderConfirmation(ctx context.Context, conf domain.OrderConfirmation) (*domain.Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	trade, order := p.findOrder(conf.OrderID)
	if order == nil {
		p.log.Warn("confirmation for unknown order", "order", conf.OrderID)
		return nil, nil
	}

	if conf.Status == domain.OrderStatusCancelled && order.Open() {
		order.Status = domain.OrderStatusCancelled
		return nil, p.persist(ctx)
	}

	delta := conf.FilledSize - order.FilledSize
	if delta <= 0 || !order.Open() {
		return nil, nil
	}
	return &domain.Fill{
		OrderID:   order.ID,
		TradeID:   trade.ID,
		Symbol:    order.Symbol,
		Direction: order.Direction,
		Size:      delta,
		Price:     conf.AvgPrice,
	}, nil
}

// findOrder resolves an order by its "<trade_id>-<sequence>" id.
func (p *Portfolio) findOrder(orderID string) (*domain.Trade, *domain.Order) {
	prefix, _, ok := strings.Cut(orderID, "-")
	if !ok {
		return nil, nil
	}
	tradeID, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return nil, nil
	}
	trade, ok := p.doc.Trades[tradeID]
	if !ok {
		return nil, nil
	}
	return trade, trade.Orders[orderID]
}

// ArchiveCompleted moves complete trades out of the live set into the
// document's archive and reports how many were moved.
func (p *Portfolio) ArchiveCompleted(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var moved []*domain.Trade
	for id, t := range p.doc.Trades {
		if t.Complete {
			moved = append(moved, t)
			delete(p.doc.Trades, id)
		}
	}
	if len(moved) == 0 {
		return 0, nil
	}
	sort.Slice(moved, func(i, j int) bool { return moved[i].ID < moved[j].ID })
	p.doc.Archived = append(p.doc.Archived, moved...)
	if err := p.persist(ctx); err != nil {
		return 0, err
	}
	return len(moved), nil
}

// OpenOrderIDs returns the ids of all orders that can still fill, across
// every live trade, in id order.
func (p *Portfolio) OpenOrderIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []string
	for _, t := range p.doc.Trades {
		for _, o := range t.OpenOrders() {
			ids = append(ids, o.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func (p *Portfolio) persist(ctx context.Context) error {
	if err := p.store.SavePortfolio(ctx, p.doc); err != nil {
		return fmt.Errorf("persisting portfolio %q: %w", p.doc.ID, err)
	}
	return nil
}
