// Package backtest replays a feed into a private order book and accounts the
// fills of a strategy trading against it.
package backtest

import (
	"context"
	"fmt"
	"log/slog"

	match "github.com/0x5487/lob-backtest"
	"github.com/0x5487/lob-backtest/feed"
	"github.com/0x5487/lob-backtest/strategy"
	"github.com/rs/xid"
	"github.com/shopspring/decimal"
)

// Source yields feed events in order. *feed.Store implements it.
type Source interface {
	Replay(ctx context.Context, fn func(feed.Event) error) error
}

// Events is an in-memory Source.
type Events []feed.Event

func (events Events) Replay(ctx context.Context, fn func(feed.Event) error) error {
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Fill is one trade a strategy order took part in.
type Fill struct {
	match.Trade
	Side      match.Side `json:"side"` // side of the strategy order
	Aggressor bool       `json:"aggressor"`
}

// Report summarises a finished run.
type Report struct {
	RunID          xid.ID          `json:"run_id"`
	Events         int             `json:"events"`
	Orders         int             `json:"orders"`
	TotalFills     int             `json:"total_fills"`
	NetPnL         decimal.Decimal `json:"net_pnl"`
	FinalInventory int64           `json:"final_inventory"`
	WinRate        decimal.Decimal `json:"win_rate"`
}

type Option func(*Backtester)

// WithLogger sets the run logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(bt *Backtester) {
		bt.logger = logger
	}
}

// WithPublishLog attaches a sink for the book events of the replay book.
func WithPublishLog(publish match.PublishLog) Option {
	return func(bt *Backtester) {
		bt.bookOpts = append(bt.bookOpts, match.WithPublishLog(publish))
	}
}

// Backtester drives one run. It is not reusable.
type Backtester struct {
	runID    xid.ID
	strategy strategy.Strategy
	logger   *slog.Logger
	bookOpts []match.OrderBookOption
	book     *match.OrderBook

	placed    map[match.OrderID]match.Side
	fills     []Fill
	events    int
	cash      decimal.Decimal
	inventory int64
	lastPrice int64
	hasLast   bool
}

func New(strat strategy.Strategy, opts ...Option) *Backtester {
	bt := &Backtester{
		runID:    xid.New(),
		strategy: strat,
		placed:   make(map[match.OrderID]match.Side),
	}

	for _, opt := range opts {
		opt(bt)
	}

	if bt.logger == nil {
		bt.logger = slog.Default()
	}
	bt.logger = bt.logger.With("run_id", bt.runID.String())
	bt.book = match.NewOrderBook(bt.bookOpts...)

	return bt
}

// Book returns the replay book.
func (bt *Backtester) Book() *match.OrderBook {
	return bt.book
}

// Fills returns the strategy fills in the order they happened.
func (bt *Backtester) Fills() []Fill {
	return bt.fills
}

// Run replays src to the end. ADD and CANCEL records change the book; the
// strategy is consulted after every record. Any rejected order aborts the run.
func (bt *Backtester) Run(ctx context.Context, src Source) (Report, error) {
	err := src.Replay(ctx, func(e feed.Event) error {
		return bt.step(e)
	})
	if err != nil {
		bt.logger.Error("backtest aborted", "events", bt.events, "error", err)
		return Report{}, fmt.Errorf("backtest: %w", err)
	}

	report := bt.Report()
	bt.logger.Info("backtest finished",
		"events", report.Events,
		"orders", report.Orders,
		"fills", report.TotalFills,
		"net_pnl", report.NetPnL.String(),
		"inventory", report.FinalInventory,
		"win_rate", report.WinRate.String(),
	)
	return report, nil
}

func (bt *Backtester) step(e feed.Event) error {
	bt.events++

	switch e.Type {
	case feed.EventAdd:
		trades, err := bt.book.AddOrder(e.Order())
		if err != nil {
			return fmt.Errorf("event %d: add order %d: %w", bt.events, e.OrderID, err)
		}
		bt.account(trades)
	case feed.EventCancel:
		bt.book.CancelOrder(e.OrderID)
	}

	order, ok := bt.strategy.Decide(bt.book, e.Timestamp)
	if !ok {
		return nil
	}

	bt.placed[order.ID] = order.Side
	trades, err := bt.book.AddOrder(order)
	if err != nil {
		return fmt.Errorf("event %d: strategy order %d: %w", bt.events, order.ID, err)
	}
	bt.logger.Debug("strategy order placed",
		"timestamp", order.Timestamp,
		"order_id", order.ID,
		"side", order.Side,
		"price", order.Price,
		"quantity", order.Quantity,
		"trades", len(trades),
	)
	bt.account(trades)
	return nil
}

// account books every trade leg that belongs to a strategy order.
func (bt *Backtester) account(trades []match.Trade) {
	for _, trade := range trades {
		if side, ok := bt.placed[trade.AggressingOrderID]; ok {
			bt.fill(trade, side, true)
		}
		if side, ok := bt.placed[trade.RestingOrderID]; ok {
			bt.fill(trade, side, false)
		}
	}
}

func (bt *Backtester) fill(trade match.Trade, side match.Side, aggressor bool) {
	notional := decimal.NewFromInt(trade.Price).Mul(decimal.NewFromInt(trade.Quantity))
	if side == match.Buy {
		bt.inventory += trade.Quantity
		bt.cash = bt.cash.Sub(notional)
	} else {
		bt.inventory -= trade.Quantity
		bt.cash = bt.cash.Add(notional)
	}
	bt.lastPrice = trade.Price
	bt.hasLast = true

	bt.fills = append(bt.fills, Fill{Trade: trade, Side: side, Aggressor: aggressor})
}

// Report computes the metrics of the run so far. PnL is marked to the price
// of the last strategy fill. A fill counts as a win when a buy was at or
// below that price, or a sell at or above it.
func (bt *Backtester) Report() Report {
	pnl := bt.cash
	if bt.hasLast {
		pnl = pnl.Add(decimal.NewFromInt(bt.inventory).Mul(decimal.NewFromInt(bt.lastPrice)))
	}

	winRate := decimal.Zero
	if n := len(bt.fills); n > 0 {
		wins := 0
		for _, f := range bt.fills {
			if (f.Side == match.Buy && f.Price <= bt.lastPrice) || (f.Side == match.Sell && f.Price >= bt.lastPrice) {
				wins++
			}
		}
		winRate = decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(n))).Round(2)
	}

	return Report{
		RunID:          bt.runID,
		Events:         bt.events,
		Orders:         len(bt.placed),
		TotalFills:     len(bt.fills),
		NetPnL:         pnl.Round(2),
		FinalInventory: bt.inventory,
		WinRate:        winRate,
	}
}
