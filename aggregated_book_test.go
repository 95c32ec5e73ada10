package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatedBook(t *testing.T) {
	t.Run("follows the book through its logs", func(t *testing.T) {
		agg := NewAggregatedBook()
		book := NewOrderBook(WithPublishLog(agg))

		mustAdd(t, book, Order{ID: 1, Side: Sell, Price: 101, Quantity: 5})
		mustAdd(t, book, Order{ID: 2, Side: Sell, Price: 102, Quantity: 5})
		mustAdd(t, book, Order{ID: 3, Side: Buy, Price: 99, Quantity: 4})
		mustAdd(t, book, Order{ID: 4, Side: Buy, Price: 101, Quantity: 7})
		book.CancelOrder(3)

		assert.Equal(t, book.Depth(0).UpdateID, agg.SequenceID())

		asks := agg.Levels(Sell, 0)
		require.Len(t, asks, 1)
		assert.Equal(t, DepthItem{Price: 102, Quantity: 5, Count: 1}, asks[0])

		bids := agg.Levels(Buy, 0)
		require.Len(t, bids, 1)
		assert.Equal(t, DepthItem{Price: 101, Quantity: 2, Count: 1}, bids[0])

		size, err := agg.Depth(Buy, 101)
		require.NoError(t, err)
		assert.Equal(t, int64(2), size)

		_, err = agg.Depth(Buy, 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("levels are best first", func(t *testing.T) {
		agg := NewAggregatedBook()
		book := NewOrderBook(WithPublishLog(agg))
		for i, p := range []int64{97, 99, 98} {
			mustAdd(t, book, Order{ID: OrderID(i + 1), Side: Buy, Price: p, Quantity: 1})
			mustAdd(t, book, Order{ID: OrderID(i + 10), Side: Sell, Price: p + 10, Quantity: 1})
		}

		bids := agg.Levels(Buy, 2)
		require.Len(t, bids, 2)
		assert.Equal(t, int64(99), bids[0].Price)
		assert.Equal(t, int64(98), bids[1].Price)

		asks := agg.Levels(Sell, 0)
		require.Len(t, asks, 3)
		assert.Equal(t, int64(107), asks[0].Price)
		assert.Equal(t, int64(109), asks[2].Price)
	})

	t.Run("duplicates are skipped and gaps rejected", func(t *testing.T) {
		agg := NewAggregatedBook()

		require.NoError(t, agg.Replay(&BookLog{SequenceID: 1, Type: LogTypeOpen, Side: Buy, Price: 100, Quantity: 5}))
		require.NoError(t, agg.Replay(&BookLog{SequenceID: 1, Type: LogTypeOpen, Side: Buy, Price: 100, Quantity: 5}))

		size, err := agg.Depth(Buy, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(5), size)

		err = agg.Replay(&BookLog{SequenceID: 3, Type: LogTypeCancel, Side: Buy, Price: 100, Quantity: 5})
		assert.ErrorIs(t, err, ErrSequenceGap)
		assert.Equal(t, uint64(1), agg.SequenceID())

		size, err = agg.Depth(Buy, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(5), size)
	})

	t.Run("rebuild from snapshot then resume", func(t *testing.T) {
		book := NewOrderBook()
		mustAdd(t, book, Order{ID: 1, Side: Buy, Price: 100, Quantity: 5})
		mustAdd(t, book, Order{ID: 2, Side: Sell, Price: 105, Quantity: 3})

		agg := NewAggregatedBook()
		require.NoError(t, agg.OnRebuild(book.Snapshot()))
		assert.Equal(t, uint64(2), agg.SequenceID())

		// attach after the snapshot and keep following
		book.publishTrader = agg
		mustAdd(t, book, Order{ID: 3, Side: Sell, Price: 100, Quantity: 2})

		size, err := agg.Depth(Buy, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(3), size)
		assert.Equal(t, uint64(3), agg.SequenceID())

		assert.ErrorIs(t, agg.OnRebuild(nil), ErrInvalidParam)
	})
}
