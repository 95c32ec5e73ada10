package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	match "github.com/0x5487/lob-backtest"
)

// GeneratorConfig controls the synthetic feed. Zero values take the defaults
// noted on each field.
type GeneratorConfig struct {
	StartTime  int64   // timestamp of the first event, default 1
	EventCount int     // number of draws, default 1000
	Volatility float64 // relative price band around BasePrice, default 0.01
	BasePrice  int64   // default 1000
	Seed       int64   // same seed, same feed
	Logger     *slog.Logger
}

func (cfg *GeneratorConfig) setDefaults() {
	if cfg.StartTime == 0 {
		cfg.StartTime = 1
	}
	if cfg.EventCount == 0 {
		cfg.EventCount = 1000
	}
	if cfg.Volatility == 0 {
		cfg.Volatility = 0.01
	}
	if cfg.BasePrice == 0 {
		cfg.BasePrice = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

// Generator draws random ADD, CANCEL and MARKET actions, runs them through
// its own OrderBook and records the outcome as feed events.
type Generator struct {
	cfg  GeneratorConfig
	rng  *rand.Rand
	book *match.OrderBook
	ids  *match.Sequence
}

// NewGenerator creates a generator with a private book and id sequence.
func NewGenerator(cfg GeneratorConfig) *Generator {
	cfg.setDefaults()
	return &Generator{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		book: match.NewOrderBook(),
		ids:  match.NewSequence(0),
	}
}

// Book exposes the generator's own book. It is not the book a backtest replays into.
func (g *Generator) Book() *match.OrderBook {
	return g.book
}

// Generate performs EventCount draws and passes every produced event to emit.
// A draw may produce no event (CANCEL on an empty book) or several (one TRADE
// per fill).
func (g *Generator) Generate(ctx context.Context, emit func(Event) error) error {
	emitted := 0
	for i := 0; i < g.cfg.EventCount; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		events, err := g.step(g.cfg.StartTime + int64(i))
		if err != nil {
			return fmt.Errorf("feed: draw %d: %w", i, err)
		}
		for _, event := range events {
			if err := emit(event); err != nil {
				return err
			}
		}
		emitted += len(events)
	}

	g.cfg.Logger.Info("feed generated", "draws", g.cfg.EventCount, "events", emitted, "resting", g.book.Len())
	return nil
}

// GenerateAll collects the whole feed in memory.
func (g *Generator) GenerateAll(ctx context.Context) ([]Event, error) {
	events := make([]Event, 0, g.cfg.EventCount)
	err := g.Generate(ctx, func(e Event) error {
		events = append(events, e)
		return nil
	})
	return events, err
}

func (g *Generator) step(ts int64) ([]Event, error) {
	draw := g.rng.Float64()
	switch {
	case draw < 0.7:
		return g.add(ts)
	case draw < 0.9:
		return g.cancel(ts), nil
	default:
		return g.market(ts)
	}
}

func (g *Generator) randomSide() match.Side {
	if g.rng.Intn(2) == 0 {
		return match.Buy
	}
	return match.Sell
}

func (g *Generator) add(ts int64) ([]Event, error) {
	band := g.cfg.Volatility * (2*g.rng.Float64() - 1)
	order := match.Order{
		ID:        g.ids.Next(),
		Price:     int64(float64(g.cfg.BasePrice) * (1 + band)),
		Quantity:  int64(g.rng.Intn(100) + 1),
		Side:      g.randomSide(),
		Timestamp: ts,
	}

	if _, err := g.book.AddOrder(order); err != nil {
		return nil, err
	}

	return []Event{{
		Timestamp: ts,
		Type:      EventAdd,
		OrderID:   order.ID,
		Side:      order.Side,
		Price:     order.Price,
		Quantity:  order.Quantity,
	}}, nil
}

func (g *Generator) cancel(ts int64) []Event {
	ids := g.book.OrderIDs()
	if len(ids) == 0 {
		return nil
	}

	id := ids[g.rng.Intn(len(ids))]
	g.book.CancelOrder(id)

	return []Event{{
		Timestamp: ts,
		Type:      EventCancel,
		OrderID:   id,
	}}
}

// market sends a marketable limit at the best opposite price, or BasePrice
// when that side is empty. Any remainder rests in the generator's book.
func (g *Generator) market(ts int64) ([]Event, error) {
	side := g.randomSide()

	price, ok := g.book.BestAsk()
	if side == match.Sell {
		price, ok = g.book.BestBid()
	}
	if !ok {
		price = g.cfg.BasePrice
	}

	order := match.Order{
		ID:        g.ids.Next(),
		Side:      side,
		Price:     price,
		Quantity:  int64(g.rng.Intn(151) + 50),
		Timestamp: ts,
	}

	trades, err := g.book.AddOrder(order)
	if err != nil {
		return nil, err
	}

	if len(trades) == 0 {
		return []Event{{
			Timestamp: ts,
			Type:      EventMarketNoTrade,
			OrderID:   order.ID,
			Side:      order.Side,
			Price:     order.Price,
			Quantity:  order.Quantity,
		}}, nil
	}

	events := make([]Event, 0, len(trades))
	for _, trade := range trades {
		events = append(events, Event{
			Timestamp:     trade.Timestamp,
			Type:          EventTrade,
			OrderID:       order.ID,
			Side:          order.Side,
			Price:         order.Price,
			Quantity:      order.Quantity,
			TradesCount:   len(trades),
			TradePrice:    trade.Price,
			TradeQuantity: trade.Quantity,
		})
	}
	return events, nil
}
