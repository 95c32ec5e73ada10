package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	match "github.com/0x5487/lob-backtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator(t *testing.T) {
	ctx := context.Background()

	t.Run("same seed same feed", func(t *testing.T) {
		a, err := NewGenerator(GeneratorConfig{EventCount: 500, Seed: 7}).GenerateAll(ctx)
		require.NoError(t, err)
		b, err := NewGenerator(GeneratorConfig{EventCount: 500, Seed: 7}).GenerateAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, a, b)

		c, err := NewGenerator(GeneratorConfig{EventCount: 500, Seed: 8}).GenerateAll(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, a, c)
	})

	t.Run("records are well formed", func(t *testing.T) {
		gen := NewGenerator(GeneratorConfig{EventCount: 2000, Seed: 1})
		events, err := gen.GenerateAll(ctx)
		require.NoError(t, err)
		require.NoError(t, gen.Book().CheckInvariants())

		added := make(map[match.OrderID]bool)
		counts := make(map[EventType]int)
		lastTS := int64(0)
		for _, e := range events {
			counts[e.Type]++
			assert.GreaterOrEqual(t, e.Timestamp, lastTS)
			lastTS = e.Timestamp

			switch e.Type {
			case EventAdd:
				assert.True(t, e.Side.Valid())
				assert.InDelta(t, 1000, e.Price, 10)
				assert.True(t, e.Quantity >= 1 && e.Quantity <= 100, "quantity %d", e.Quantity)
				assert.False(t, added[e.OrderID], "id %d reused", e.OrderID)
				added[e.OrderID] = true
			case EventCancel:
				assert.Equal(t, match.Side(0), e.Side)
			case EventTrade:
				assert.Positive(t, e.TradesCount)
				assert.Positive(t, e.TradeQuantity)
				assert.True(t, e.Quantity >= 50 && e.Quantity <= 200, "quantity %d", e.Quantity)
			case EventMarketNoTrade:
				assert.Zero(t, e.TradesCount)
			}
		}

		assert.Positive(t, counts[EventAdd])
		assert.Positive(t, counts[EventCancel])
		assert.Positive(t, counts[EventTrade]+counts[EventMarketNoTrade])
		assert.Greater(t, counts[EventAdd], counts[EventCancel])
	})

	t.Run("emit errors stop generation", func(t *testing.T) {
		boom := errors.New("boom")
		n := 0
		err := NewGenerator(GeneratorConfig{EventCount: 100}).Generate(ctx, func(Event) error {
			n++
			if n == 3 {
				return boom
			}
			return nil
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 3, n)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewGenerator(GeneratorConfig{}).GenerateAll(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestEvent(t *testing.T) {
	e := Event{Timestamp: 3, Type: EventAdd, OrderID: 9, Side: match.Sell, Price: 1001, Quantity: 4}
	assert.True(t, e.MutatesBook())
	assert.Equal(t, match.Order{ID: 9, Side: match.Sell, Price: 1001, Quantity: 4, Timestamp: 3}, e.Order())

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event_type":"ADD"`)
	assert.Contains(t, string(data), `"side":"SELL"`)

	cancel, err := json.Marshal(Event{Type: EventCancel, OrderID: 9})
	require.NoError(t, err)
	assert.NotContains(t, string(cancel), `"side"`)

	assert.False(t, Event{Type: EventTrade}.MutatesBook())
	assert.False(t, Event{Type: EventMarketNoTrade}.MutatesBook())
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	events, err := NewGenerator(GeneratorConfig{EventCount: 300, Seed: 3}).GenerateAll(ctx)
	require.NoError(t, err)

	store, err := OpenStore(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), store.Len())

	require.NoError(t, store.Append(events[:100]...))
	require.NoError(t, store.Append(events[100:]...))
	require.NoError(t, store.Append())
	assert.Equal(t, uint64(len(events)), store.Len())
	require.NoError(t, store.Close())

	// reopening keeps the position and the order
	store, err = OpenStore(dir)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, uint64(len(events)), store.Len())

	var replayed []Event
	require.NoError(t, store.Replay(ctx, func(e Event) error {
		replayed = append(replayed, e)
		return nil
	}))
	assert.Equal(t, events, replayed)

	t.Run("callback error stops the replay", func(t *testing.T) {
		stop := errors.New("stop")
		n := 0
		err := store.Replay(ctx, func(Event) error {
			n++
			if n == 10 {
				return stop
			}
			return nil
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 10, n)
	})
}

func TestKeys(t *testing.T) {
	for _, pos := range []uint64{0, 1, 255, 256, 1 << 40} {
		got, err := parseKey(keyFor(pos))
		require.NoError(t, err)
		assert.Equal(t, pos, got)
	}

	// positions sort in byte order
	assert.Negative(t, bytes.Compare(keyFor(255), keyFor(256)))

	_, err := parseKey([]byte("event/1"))
	assert.ErrorIs(t, err, ErrCorruptKey)
}
