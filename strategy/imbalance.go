// Package strategy holds order-generating signals evaluated against a book.
package strategy

import (
	match "github.com/0x5487/lob-backtest"
	"github.com/shopspring/decimal"
)

// Book is the read-only view a strategy needs.
type Book interface {
	BestBid() (int64, bool)
	BestAsk() (int64, bool)
	Depth(limit uint32) *match.Depth
}

// Strategy decides whether to place an order given the current book.
type Strategy interface {
	Decide(book Book, timestamp int64) (match.Order, bool)
}

// DefaultIDBase keeps strategy order ids clear of feed ids.
const DefaultIDBase uint64 = 1 << 32

type ImbalanceConfig struct {
	Threshold decimal.Decimal // default 0.3
	MinQty    int64           // default 5
	IDBase    uint64          // first id is IDBase+1, default DefaultIDBase
}

// Imbalance leans against top-of-book pressure: when bids dominate it offers
// one tick above the best ask, when asks dominate it bids one tick below the
// best bid.
type Imbalance struct {
	threshold decimal.Decimal
	minQty    int64
	ids       *match.Sequence
}

func NewImbalance(cfg ImbalanceConfig) *Imbalance {
	if cfg.Threshold.IsZero() {
		cfg.Threshold = decimal.NewFromFloat(0.3)
	}
	if cfg.MinQty <= 0 {
		cfg.MinQty = 5
	}
	if cfg.IDBase == 0 {
		cfg.IDBase = DefaultIDBase
	}

	return &Imbalance{
		threshold: cfg.Threshold,
		minQty:    cfg.MinQty,
		ids:       match.NewSequence(cfg.IDBase),
	}
}

// Ratio returns (bidQty-askQty)/(bidQty+askQty) of the top level of each
// side. ok is false when either side is empty.
func Ratio(book Book) (ratio decimal.Decimal, ok bool) {
	depth := book.Depth(1)
	if len(depth.Bids) == 0 || len(depth.Asks) == 0 {
		return decimal.Zero, false
	}

	bid := decimal.NewFromInt(depth.Bids[0].Quantity)
	ask := decimal.NewFromInt(depth.Asks[0].Quantity)
	total := bid.Add(ask)
	if total.IsZero() {
		return decimal.Zero, false
	}

	return bid.Sub(ask).Div(total), true
}

// Decide implements Strategy. An id is consumed on every evaluated book,
// whether or not an order results.
func (s *Imbalance) Decide(book Book, timestamp int64) (match.Order, bool) {
	ratio, ok := Ratio(book)
	if !ok {
		return match.Order{}, false
	}

	id := s.ids.Next()

	switch {
	case ratio.GreaterThan(s.threshold):
		ask, _ := book.BestAsk()
		return match.Order{ID: id, Side: match.Sell, Price: ask + 1, Quantity: s.minQty, Timestamp: timestamp}, true
	case ratio.LessThan(s.threshold.Neg()):
		bid, _ := book.BestBid()
		if bid <= 1 {
			return match.Order{}, false
		}
		return match.Order{ID: id, Side: match.Buy, Price: bid - 1, Quantity: s.minQty, Timestamp: timestamp}, true
	}

	return match.Order{}, false
}

// IsOwn reports whether id was issued by a strategy using idBase.
func IsOwn(id match.OrderID, idBase uint64) bool {
	return id > idBase
}
