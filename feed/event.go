// Package feed produces, stores and replays the synthetic market event stream
// that drives a backtest.
package feed

import (
	match "github.com/0x5487/lob-backtest"
)

// EventType is the kind of a feed record.
type EventType string

const (
	EventAdd           EventType = "ADD"
	EventCancel        EventType = "CANCEL"
	EventTrade         EventType = "TRADE"
	EventMarketNoTrade EventType = "MARKET_NO_TRADE"
)

// Event is one record of the feed. Only ADD and CANCEL records describe
// book changes; TRADE and MARKET_NO_TRADE report what happened inside the
// generator's own book and are informational.
type Event struct {
	Timestamp     int64         `json:"timestamp"`
	Type          EventType     `json:"event_type"`
	OrderID       match.OrderID `json:"order_id"`
	Side          match.Side    `json:"side,omitempty"`
	Price         int64         `json:"price,omitempty"`
	Quantity      int64         `json:"quantity,omitempty"`
	TradesCount   int           `json:"trades_count"`
	TradePrice    int64         `json:"trade_price,omitempty"`
	TradeQuantity int64         `json:"trade_quantity,omitempty"`
}

// Order converts an ADD record into the order it describes.
func (e Event) Order() match.Order {
	return match.Order{
		ID:        e.OrderID,
		Side:      e.Side,
		Price:     e.Price,
		Quantity:  e.Quantity,
		Timestamp: e.Timestamp,
	}
}

// MutatesBook reports whether the record must be applied to a replaying book.
func (e Event) MutatesBook() bool {
	return e.Type == EventAdd || e.Type == EventCancel
}
