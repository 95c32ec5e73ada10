package match

import (
	"sync"
	"time"
)

// BookLog represents an event in the order book.
// SequenceID is a book-wide increasing ID for every event, used for ordering,
// deduplication, and rebuild synchronization in downstream consumers such as
// AggregatedBook.
type BookLog struct {
	SequenceID     uint64    `json:"seq_id"`
	TradeID        uint64    `json:"trade_id,omitempty"` // only set for Match events
	Type           LogType   `json:"type"`
	Side           Side      `json:"side"` // aggressor side for Match events
	Price          int64     `json:"price"`
	Quantity       int64     `json:"quantity"`
	Amount         int64     `json:"amount,omitempty"` // Price * Quantity, only set for Match events
	OldPrice       int64     `json:"old_price,omitempty"`
	OldQuantity    int64     `json:"old_quantity,omitempty"`
	OrderID        OrderID   `json:"order_id"`
	RestingOrderID OrderID   `json:"resting_order_id,omitempty"`
	RestingLeft    int64     `json:"resting_left,omitempty"` // resting quantity after the fill, Match only
	Timestamp      int64     `json:"timestamp"`
	CreatedAt      time.Time `json:"created_at"`
}

var bookLogPool = sync.Pool{
	New: func() any {
		return new(BookLog)
	},
}

func acquireBookLog() *BookLog {
	return bookLogPool.Get().(*BookLog)
}

func releaseBookLog(log *BookLog) {
	*log = BookLog{}
	bookLogPool.Put(log)
}

func NewOpenLog(seqID uint64, order *Order) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeOpen
	log.Side = order.Side
	log.Price = order.Price
	log.Quantity = order.Quantity
	log.OrderID = order.ID
	log.Timestamp = order.Timestamp
	log.CreatedAt = time.Now().UTC()
	return log
}

func NewMatchLog(seqID uint64, trade *Trade, aggressor *Order, restingLeft int64) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.TradeID = trade.ID
	log.Type = LogTypeMatch
	log.Side = aggressor.Side
	log.Price = trade.Price
	log.Quantity = trade.Quantity
	log.Amount = trade.Price * trade.Quantity
	log.OrderID = trade.AggressingOrderID
	log.RestingOrderID = trade.RestingOrderID
	log.RestingLeft = restingLeft
	log.Timestamp = trade.Timestamp
	log.CreatedAt = time.Now().UTC()
	return log
}

func NewCancelLog(seqID uint64, order *Order) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeCancel
	log.Side = order.Side
	log.Price = order.Price
	log.Quantity = order.Quantity
	log.OrderID = order.ID
	log.Timestamp = order.Timestamp
	log.CreatedAt = time.Now().UTC()
	return log
}

// NewAmendLog records a modify. The old order always leaves the book; the
// replacement shows up in the Open or Match events that follow.
func NewAmendLog(seqID uint64, order *Order, oldPrice, oldQuantity int64) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeAmend
	log.Side = order.Side
	log.Price = order.Price
	log.Quantity = order.Quantity
	log.OldPrice = oldPrice
	log.OldQuantity = oldQuantity
	log.OrderID = order.ID
	log.Timestamp = order.Timestamp
	log.CreatedAt = time.Now().UTC()
	return log
}
