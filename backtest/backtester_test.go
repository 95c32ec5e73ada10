package backtest

import (
	"context"
	"io"
	"log/slog"
	"testing"

	match "github.com/0x5487/lob-backtest"
	"github.com/0x5487/lob-backtest/feed"
	"github.com/0x5487/lob-backtest/strategy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// scripted places the order registered for the n-th call, if any.
type scripted struct {
	calls  int
	orders map[int]match.Order
}

func (s *scripted) Decide(_ strategy.Book, timestamp int64) (match.Order, bool) {
	s.calls++
	order, ok := s.orders[s.calls]
	order.Timestamp = timestamp
	return order, ok
}

func add(ts int64, id match.OrderID, side match.Side, price, qty int64) feed.Event {
	return feed.Event{Timestamp: ts, Type: feed.EventAdd, OrderID: id, Side: side, Price: price, Quantity: qty}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRunAccounting(t *testing.T) {
	ctx := context.Background()

	t.Run("resting strategy order filled by the feed", func(t *testing.T) {
		bt := New(strategy.NewImbalance(strategy.ImbalanceConfig{}), WithLogger(quiet))
		report, err := bt.Run(ctx, Events{
			add(1, 1, match.Buy, 99, 90),
			add(2, 2, match.Sell, 101, 10), // bid pressure: strategy offers 5 @ 102
			add(3, 3, match.Buy, 102, 15),  // takes 10 @ 101 then the strategy's 5 @ 102
		})
		require.NoError(t, err)

		assert.Equal(t, 3, report.Events)
		assert.Equal(t, 1, report.Orders)
		assert.Equal(t, 1, report.TotalFills)
		assert.Equal(t, int64(-5), report.FinalInventory)
		assert.True(t, report.NetPnL.Equal(decimal.Zero), report.NetPnL.String())
		assert.True(t, report.WinRate.Equal(dec("1")), report.WinRate.String())
		assert.False(t, report.RunID.IsNil())

		fills := bt.Fills()
		require.Len(t, fills, 1)
		assert.False(t, fills[0].Aggressor)
		assert.Equal(t, match.Sell, fills[0].Side)
		assert.Equal(t, strategy.DefaultIDBase+1, fills[0].RestingOrderID)
		assert.Equal(t, int64(102), fills[0].Price)
	})

	t.Run("aggressing strategy orders", func(t *testing.T) {
		strat := &scripted{orders: map[int]match.Order{
			1: {ID: 1000, Side: match.Buy, Price: 101, Quantity: 4},
			2: {ID: 1001, Side: match.Sell, Price: 90, Quantity: 2},
		}}
		bt := New(strat, WithLogger(quiet))
		report, err := bt.Run(ctx, Events{
			add(1, 1, match.Sell, 101, 10),
			add(2, 2, match.Buy, 95, 10),
		})
		require.NoError(t, err)

		// cash -404 + 190, inventory 2 marked at 95
		assert.Equal(t, 2, report.TotalFills)
		assert.Equal(t, int64(2), report.FinalInventory)
		assert.True(t, report.NetPnL.Equal(dec("-24")), report.NetPnL.String())
		// the buy at 101 loses against 95, the sell at 95 wins
		assert.True(t, report.WinRate.Equal(dec("0.5")), report.WinRate.String())

		for _, f := range bt.Fills() {
			assert.True(t, f.Aggressor)
		}
		require.NoError(t, bt.Book().CheckInvariants())
	})

	t.Run("every fill at or better than the mark wins", func(t *testing.T) {
		strat := &scripted{orders: map[int]match.Order{
			1: {ID: 1000, Side: match.Buy, Price: 100, Quantity: 1},
			2: {ID: 1001, Side: match.Buy, Price: 100, Quantity: 1},
			3: {ID: 1002, Side: match.Buy, Price: 101, Quantity: 1},
		}}
		bt := New(strat, WithLogger(quiet))
		report, err := bt.Run(ctx, Events{
			add(1, 1, match.Sell, 100, 2),
			add(2, 2, match.Sell, 101, 5),
			add(3, 3, match.Sell, 105, 5),
		})
		require.NoError(t, err)

		assert.Equal(t, 3, report.TotalFills)
		assert.True(t, report.WinRate.Equal(dec("1")), report.WinRate.String())
		// 3 long marked at 101 against a cost of 301
		assert.True(t, report.NetPnL.Equal(dec("2")), report.NetPnL.String())
	})

	t.Run("no fills", func(t *testing.T) {
		bt := New(&scripted{}, WithLogger(quiet))
		report, err := bt.Run(ctx, Events{add(1, 1, match.Sell, 100, 2)})
		require.NoError(t, err)
		assert.Zero(t, report.TotalFills)
		assert.True(t, report.NetPnL.IsZero())
		assert.True(t, report.WinRate.IsZero())
	})
}

func TestRunReplay(t *testing.T) {
	ctx := context.Background()

	t.Run("only ADD and CANCEL change the book", func(t *testing.T) {
		strat := &scripted{}
		bt := New(strat, WithLogger(quiet))
		report, err := bt.Run(ctx, Events{
			add(1, 1, match.Sell, 100, 2),
			add(2, 2, match.Buy, 90, 2),
			{Timestamp: 3, Type: feed.EventCancel, OrderID: 1},
			{Timestamp: 4, Type: feed.EventCancel, OrderID: 77},
			{Timestamp: 5, Type: feed.EventTrade, OrderID: 9, Side: match.Buy, Price: 90, Quantity: 2, TradesCount: 1, TradePrice: 90, TradeQuantity: 2},
			{Timestamp: 6, Type: feed.EventMarketNoTrade, OrderID: 10, Side: match.Sell, Price: 200, Quantity: 50},
		})
		require.NoError(t, err)

		assert.Equal(t, 6, report.Events)
		assert.Equal(t, 6, strat.calls)
		assert.Equal(t, []match.OrderID{2}, bt.Book().OrderIDs())
	})

	t.Run("duplicate order aborts the run", func(t *testing.T) {
		bt := New(&scripted{}, WithLogger(quiet))
		_, err := bt.Run(ctx, Events{
			add(1, 1, match.Sell, 100, 2),
			add(2, 1, match.Sell, 101, 2),
			add(3, 2, match.Sell, 102, 2),
		})
		require.ErrorIs(t, err, match.ErrDuplicateOrder)

		var dup *match.DuplicateOrderError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, match.OrderID(1), dup.OrderID)
		assert.Equal(t, 1, bt.Book().Len())
	})

	t.Run("invalid strategy order aborts the run", func(t *testing.T) {
		strat := &scripted{orders: map[int]match.Order{1: {ID: 1000, Side: match.Buy, Price: 0, Quantity: 1}}}
		_, err := New(strat, WithLogger(quiet)).Run(ctx, Events{add(1, 1, match.Sell, 100, 2)})
		assert.ErrorIs(t, err, match.ErrInvalidParam)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := New(&scripted{}, WithLogger(quiet)).Run(cctx, Events{add(1, 1, match.Sell, 100, 2)})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunGeneratedFeed(t *testing.T) {
	ctx := context.Background()

	store, err := feed.OpenStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	events, err := feed.NewGenerator(feed.GeneratorConfig{EventCount: 1000, Seed: 1, Logger: quiet}).GenerateAll(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Append(events...))

	depth := match.NewAggregatedBook()
	memory := match.NewMemoryPublishLog()
	bt := New(strategy.NewImbalance(strategy.ImbalanceConfig{}),
		WithLogger(quiet),
		WithPublishLog(match.NewMultiPublishLog(depth, memory)),
	)

	report, err := bt.Run(ctx, store)
	require.NoError(t, err)
	require.NoError(t, bt.Book().CheckInvariants())

	assert.Equal(t, int(store.Len()), report.Events)
	assert.Equal(t, len(bt.Fills()), report.TotalFills)

	var inventory int64
	for _, f := range bt.Fills() {
		if f.Side == match.Buy {
			inventory += f.Quantity
		} else {
			inventory -= f.Quantity
		}
		assert.True(t, strategy.IsOwn(f.AggressingOrderID, strategy.DefaultIDBase) ||
			strategy.IsOwn(f.RestingOrderID, strategy.DefaultIDBase))
	}
	assert.Equal(t, inventory, report.FinalInventory)
	assert.True(t, report.WinRate.GreaterThanOrEqual(decimal.Zero) && report.WinRate.LessThanOrEqual(decimal.NewFromInt(1)))

	// the rebuilt view agrees with the replay book
	assert.Equal(t, uint64(memory.Count()), depth.SequenceID())
	bookDepth := bt.Book().Depth(0)
	levels := depth.Levels(match.Buy, 0)
	require.Len(t, levels, len(bookDepth.Bids))
	for i, lvl := range bookDepth.Bids {
		assert.Equal(t, *lvl, levels[i])
	}
	levels = depth.Levels(match.Sell, 0)
	require.Len(t, levels, len(bookDepth.Asks))
	for i, lvl := range bookDepth.Asks {
		assert.Equal(t, *lvl, levels[i])
	}

	// same feed, same strategy: same numbers
	again, err := New(strategy.NewImbalance(strategy.ImbalanceConfig{}), WithLogger(quiet)).Run(ctx, store)
	require.NoError(t, err)
	assert.True(t, report.NetPnL.Equal(again.NetPnL))
	assert.Equal(t, report.TotalFills, again.TotalFills)
	assert.NotEqual(t, report.RunID, again.RunID)
}
