package match

import (
	"github.com/0x5487/lob-backtest/protocol"
)

type Side = protocol.Side

const (
	Buy  Side = protocol.SideBuy
	Sell Side = protocol.SideSell
)

type LogType = protocol.LogType

const (
	LogTypeOpen   LogType = protocol.LogTypeOpen
	LogTypeMatch  LogType = protocol.LogTypeMatch
	LogTypeCancel LogType = protocol.LogTypeCancel
	LogTypeAmend  LogType = protocol.LogTypeAmend
)

// OrderID identifies an order. It is unique among resting orders of one book.
type OrderID = uint64

// Order represents a limit order. While resting, Quantity is the remaining size
// and is always positive.
type Order struct {
	ID        OrderID `json:"id"`
	Side      Side    `json:"side"`
	Price     int64   `json:"price"`     // ticks
	Quantity  int64   `json:"quantity"`  // remaining
	Timestamp int64   `json:"timestamp"` // arrival sequence, only used as a tie-break fact

	// Intrusive linked list pointers (ignored by JSON)
	next  *Order
	prev  *Order
	level *priceLevel
	rank  uint64 // insertion rank within the book, stamped on every insert
}

// Trade is an immutable fill between an aggressing and a resting order.
type Trade struct {
	ID                uint64  `json:"trade_id"`
	AggressingOrderID OrderID `json:"aggressing_order_id"`
	RestingOrderID    OrderID `json:"resting_order_id"`
	Price             int64   `json:"price"` // always the resting order's price
	Quantity          int64   `json:"quantity"`
	Timestamp         int64   `json:"timestamp"` // copied from the aggressing order
}

// DepthItem is the aggregate of one price level.
type DepthItem struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
	Count    int64 `json:"count"`
}

// Depth lists price levels of both sides, best price first.
type Depth struct {
	UpdateID uint64       `json:"update_id"`
	Asks     []*DepthItem `json:"asks"`
	Bids     []*DepthItem `json:"bids"`
}

// DepthChange represents a change in the order book depth.
type DepthChange struct {
	Side       Side
	Price      int64
	SizeDiff   int64
	OrdersDiff int64
}

// BookStats contains statistics about the order book queues
type BookStats struct {
	AskDepthCount int64 `json:"ask_depth_count"`
	AskOrderCount int64 `json:"ask_order_count"`
	BidDepthCount int64 `json:"bid_depth_count"`
	BidOrderCount int64 `json:"bid_order_count"`
}
