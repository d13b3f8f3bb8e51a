// Package domain defines the core types shared across the quantd engine:
// ticks, bars, data-status reports, and the trade/order/position records
// owned by the portfolio.
package domain

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Tick is a single observed trade on the venue. Ticks are ephemeral: they
// live in the feed synchronizer's trade table until the bar builder consumes
// them at the next minute boundary.
type Tick struct {
	Symbol    string
	Price     float64
	Size      float64
	Timestamp int64 // Unix seconds
}

// Bar is a fixed-interval OHLCV aggregate for one symbol. Timestamp is the
// minute-aligned Unix second marking the start of the interval and is unique
// per symbol in persisted history.
type Bar struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// IsNull reports whether the bar records a minute with no observed trading
// activity: all price fields unset and zero volume.
func (b Bar) IsNull() bool {
	return b.Open == 0 && b.High == 0 && b.Low == 0 && b.Close == 0 && b.Volume == 0
}

// DataStatusReport describes the completeness of the persisted bar history
// for one (exchange, symbol). It is computed on demand and consumed
// immediately by the backfill routines; it is never persisted.
type DataStatusReport struct {
	Exchange    string
	Symbol      string
	OriginTS    int64 // first timestamp ever available upstream
	OldestTS    int64 // oldest locally stored bar
	NewestTS    int64 // newest locally stored bar
	CurrentTS   int64 // latest closed minute
	MaxBinSize  int   // max minutes per historical request
	TotalStored int
	TotalNeeded int
	Gaps        []int64 // required minutes absent from storage, ascending
	NullBars    []int64 // stored minutes whose bar is null, ascending
}

// Complete reports whether the stored history needs no repair.
func (r DataStatusReport) Complete() bool {
	return len(r.Gaps) == 0 && len(r.NullBars) == 0
}

// ---------------------------------------------------------------------------
// Directions and order enums
// ---------------------------------------------------------------------------

// Direction is the side of a trade or order.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// OrderMetatype is an order's role within its parent trade.
type OrderMetatype string

const (
	MetatypeEntry      OrderMetatype = "ENTRY"
	MetatypeStop       OrderMetatype = "STOP"
	MetatypeTakeProfit OrderMetatype = "TAKE_PROFIT"
)

// OrderType is the venue execution type of an order.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// OrderStatus is the fill state of an order.
type OrderStatus string

const (
	OrderStatusUnfilled  OrderStatus = "UNFILLED"
	OrderStatusPartial   OrderStatus = "PARTIAL"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ---------------------------------------------------------------------------
// Portfolio records
// ---------------------------------------------------------------------------

// Signal is a strategy's request to open a trade. StopPrice and TakeProfits
// may be zero/empty, in which case the portfolio derives defaults from its
// configured risk policy.
type Signal struct {
	Strategy    string       `json:"strategy"`
	Venue       string       `json:"venue"`
	Symbol      string       `json:"symbol"`
	Direction   Direction    `json:"direction"`
	EntryPrice  float64      `json:"entry_price"`
	EntryType   OrderType    `json:"entry_type"`
	StopPrice   float64      `json:"stop_price,omitempty"`
	TakeProfits []TakeProfit `json:"take_profits,omitempty"`
	Timestamp   int64        `json:"timestamp"`
}

// TakeProfit is one partial-exit target, sized as a fraction of the position.
type TakeProfit struct {
	Price  float64 `json:"price"`
	Weight float64 `json:"weight"` // fraction of position size, (0, 1]
}

// Order is one constituent order of a trade. ID is derived as
// "<trade_id>-<sequence>" and assigned by the portfolio.
type Order struct {
	ID         string        `json:"id"`
	TradeID    int64         `json:"trade_id"`
	Metatype   OrderMetatype `json:"metatype"`
	Type       OrderType     `json:"type"`
	Direction  Direction     `json:"direction"`
	Symbol     string        `json:"symbol"`
	Size       float64       `json:"size"`
	Price      float64       `json:"price"`
	VoidPrice  float64       `json:"void_price,omitempty"`
	Trail      bool          `json:"trail,omitempty"`
	Status     OrderStatus   `json:"status"`
	FilledSize float64       `json:"filled_size"`
}

// Open reports whether the order can still fill.
func (o Order) Open() bool {
	return o.Status == OrderStatusUnfilled || o.Status == OrderStatusPartial
}

// Fill is a venue execution report against one order.
type Fill struct {
	OrderID   string    `json:"order_id"`
	TradeID   int64     `json:"trade_id"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Size      float64   `json:"size"`
	Price     float64   `json:"price"`
	Timestamp int64     `json:"timestamp"`
}

// OrderConfirmation is the venue's report of an order's current state,
// merged into the stored order by the portfolio.
type OrderConfirmation struct {
	OrderID    string
	Status     OrderStatus
	FilledSize float64
	AvgPrice   float64
}

// Position is the open exposure of one active trade.
type Position struct {
	TradeID    int64     `json:"trade_id"`
	Direction  Direction `json:"direction"`
	Size       float64   `json:"size"`
	EntryPrice float64   `json:"entry_price"`
	Value      float64   `json:"value"`
}

// Trade aggregates the orders and optional position sharing one lifecycle.
// It is owned exclusively by the portfolio state machine and persisted on
// every mutation.
type Trade struct {
	ID             int64             `json:"id"`
	Direction      Direction         `json:"direction"`
	Venue          string            `json:"venue"`
	Symbol         string            `json:"symbol"`
	Strategy       string            `json:"strategy"`
	EntryTimestamp int64             `json:"entry_timestamp"`
	Position       *Position         `json:"position,omitempty"`
	Orders         map[string]*Order `json:"orders"`
	Active         bool              `json:"active"`
	Complete       bool              `json:"complete"`
	PnL            float64           `json:"pnl"`
}

// OpenOrders returns the trade's orders that can still fill.
func (t *Trade) OpenOrders() []*Order {
	var open []*Order
	for _, o := range t.Orders {
		if o.Open() {
			open = append(open, o)
		}
	}
	return open
}

// PortfolioDocument is the whole-document persisted state of one portfolio.
// The portfolio state machine replaces it on every mutation; everything else
// only reads it.
type PortfolioDocument struct {
	ID          string           `json:"id"`
	NextTradeID int64            `json:"next_trade_id"`
	Trades      map[int64]*Trade `json:"trades"`
	Archived    []*Trade         `json:"archived,omitempty"`
}

// NewPortfolioDocument returns an empty document with trade ids starting at 1.
func NewPortfolioDocument(id string) *PortfolioDocument {
	return &PortfolioDocument{
		ID:          id,
		NextTradeID: 1,
		Trades:      make(map[int64]*Trade),
	}
}
