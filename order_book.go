package match

import (
	"fmt"
	"slices"
)

// OrderBook is a single-instrument price-time priority limit order book.
// It is not safe for concurrent use; wrap it in an Engine for that.
type OrderBook struct {
	bidQueue      *queue
	askQueue      *queue
	orders        map[OrderID]*Order
	tradeSeq      *Sequence
	logSeq        *Sequence
	rank          uint64
	publishTrader PublishLog
}

type OrderBookOption func(*OrderBook)

// WithPublishLog sets the sink of BookLog events. Defaults to DiscardPublishLog.
func WithPublishLog(publishTrader PublishLog) OrderBookOption {
	return func(book *OrderBook) {
		book.publishTrader = publishTrader
	}
}

// WithTradeSequence sets the allocator of trade ids.
func WithTradeSequence(seq *Sequence) OrderBookOption {
	return func(book *OrderBook) {
		book.tradeSeq = seq
	}
}

// WithLogSequence sets the allocator of BookLog sequence ids.
func WithLogSequence(seq *Sequence) OrderBookOption {
	return func(book *OrderBook) {
		book.logSeq = seq
	}
}

// NewOrderBook creates an empty order book.
func NewOrderBook(opts ...OrderBookOption) *OrderBook {
	book := &OrderBook{
		bidQueue:      NewBuyerQueue(),
		askQueue:      NewSellerQueue(),
		orders:        make(map[OrderID]*Order),
		publishTrader: NewDiscardPublishLog(),
	}

	for _, opt := range opts {
		opt(book)
	}

	if book.tradeSeq == nil {
		book.tradeSeq = NewSequence(0)
	}
	if book.logSeq == nil {
		book.logSeq = NewSequence(0)
	}

	return book
}

// AddOrder matches the order against the opposite side and rests the remainder.
// Trades are returned in the order they were produced. A rejected order leaves
// the book untouched.
func (book *OrderBook) AddOrder(order Order) ([]Trade, error) {
	if !order.Side.Valid() || order.Quantity <= 0 || order.Price <= 0 {
		return nil, ErrInvalidParam
	}

	if _, ok := book.orders[order.ID]; ok {
		return nil, &DuplicateOrderError{OrderID: order.ID}
	}

	incoming := &Order{
		ID:        order.ID,
		Side:      order.Side,
		Price:     order.Price,
		Quantity:  order.Quantity,
		Timestamp: order.Timestamp,
	}

	logs := make([]*BookLog, 0, 8)
	trades, logs := book.handleLimitOrder(incoming, logs)
	book.publish(logs)

	return trades, nil
}

// CancelOrder removes a resting order. Unknown ids are ignored.
func (book *OrderBook) CancelOrder(id OrderID) {
	order, ok := book.orders[id]
	if !ok {
		return
	}

	book.removeResting(order)

	log := NewCancelLog(book.logSeq.Next(), order)
	book.publishTrader.Publish(log)
	releaseBookLog(log)
}

// ModifyOrder replaces a resting order. The old order is cancelled; when
// newQuantity is positive a replacement with the same id and timestamp goes
// through the full matching path and queues at the back of its level.
// A nil newPrice keeps the current price. Unknown ids are ignored.
func (book *OrderBook) ModifyOrder(id OrderID, newQuantity int64, newPrice *int64) ([]Trade, error) {
	order, ok := book.orders[id]
	if !ok {
		return nil, nil
	}

	price := order.Price
	if newPrice != nil {
		if *newPrice <= 0 {
			return nil, ErrInvalidParam
		}
		price = *newPrice
	}

	book.removeResting(order)

	if newQuantity <= 0 {
		log := NewCancelLog(book.logSeq.Next(), order)
		book.publishTrader.Publish(log)
		releaseBookLog(log)
		return nil, nil
	}

	replacement := &Order{
		ID:        order.ID,
		Side:      order.Side,
		Price:     price,
		Quantity:  newQuantity,
		Timestamp: order.Timestamp,
	}

	logs := make([]*BookLog, 0, 8)
	logs = append(logs, NewAmendLog(book.logSeq.Next(), replacement, order.Price, order.Quantity))
	trades, logs := book.handleLimitOrder(replacement, logs)
	book.publish(logs)

	return trades, nil
}

// BestBid returns the highest resting bid price.
func (book *OrderBook) BestBid() (int64, bool) {
	return book.bidQueue.bestPrice()
}

// BestAsk returns the lowest resting ask price.
func (book *OrderBook) BestAsk() (int64, bool) {
	return book.askQueue.bestPrice()
}

// Depth returns the aggregated levels of both sides, best price first.
// A limit of 0 returns every level.
func (book *OrderBook) Depth(limit uint32) *Depth {
	return &Depth{
		UpdateID: book.logSeq.Current(),
		Asks:     book.askQueue.depth(limit),
		Bids:     book.bidQueue.depth(limit),
	}
}

// Snapshot returns a detached copy of every level and the current sequence ids.
func (book *OrderBook) Snapshot() *BookSnapshot {
	return &BookSnapshot{
		SchemaVersion: SnapshotSchemaVersion,
		SeqID:         book.logSeq.Current(),
		TradeID:       book.tradeSeq.Current(),
		Bids:          book.bidQueue.depth(0),
		Asks:          book.askQueue.depth(0),
	}
}

// Stats returns level and order counts per side.
func (book *OrderBook) Stats() BookStats {
	return BookStats{
		AskDepthCount: book.askQueue.depthCount(),
		AskOrderCount: book.askQueue.orderCount(),
		BidDepthCount: book.bidQueue.depthCount(),
		BidOrderCount: book.bidQueue.orderCount(),
	}
}

// Order returns a copy of a resting order.
func (book *OrderBook) Order(id OrderID) (Order, bool) {
	order, ok := book.orders[id]
	if !ok {
		return Order{}, false
	}
	return Order{
		ID:        order.ID,
		Side:      order.Side,
		Price:     order.Price,
		Quantity:  order.Quantity,
		Timestamp: order.Timestamp,
	}, true
}

// Orders returns copies of the resting orders of one side in priority order.
func (book *OrderBook) Orders(side Side) []Order {
	if side == Buy {
		return book.bidQueue.toSnapshot()
	}
	return book.askQueue.toSnapshot()
}

// OrderIDs returns the ids of all resting orders in ascending order.
func (book *OrderBook) OrderIDs() []OrderID {
	ids := make([]OrderID, 0, len(book.orders))
	for id := range book.orders {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of resting orders.
func (book *OrderBook) Len() int {
	return len(book.orders)
}

// handleLimitOrder matches the order against the opposite side and rests
// whatever is left. Logs are appended to logs and returned.
func (book *OrderBook) handleLimitOrder(order *Order, logs []*BookLog) ([]Trade, []*BookLog) {
	targetQueue := book.askQueue
	if order.Side == Sell {
		targetQueue = book.bidQueue
	}

	var trades []Trade

	for order.Quantity > 0 {
		lvl := targetQueue.bestLevel()
		if lvl == nil || !crosses(order, lvl.price) {
			break
		}

		for order.Quantity > 0 && !lvl.isEmpty() {
			resting := lvl.head
			qty := min(order.Quantity, resting.Quantity)

			trade := Trade{
				ID:                book.tradeSeq.Next(),
				AggressingOrderID: order.ID,
				RestingOrderID:    resting.ID,
				Price:             lvl.price,
				Quantity:          qty,
				Timestamp:         order.Timestamp,
			}
			trades = append(trades, trade)
			logs = append(logs, NewMatchLog(book.logSeq.Next(), &trade, order, resting.Quantity-qty))

			order.Quantity -= qty
			if qty == resting.Quantity {
				// the level is dropped from its side once the last order leaves
				targetQueue.removeOrder(resting)
				delete(book.orders, resting.ID)
			} else {
				lvl.reduce(resting, qty)
			}
		}
	}

	if order.Quantity > 0 {
		book.rest(order)
		logs = append(logs, NewOpenLog(book.logSeq.Next(), order))
	}

	return trades, logs
}

// crosses reports whether order is marketable against the opposite price.
func crosses(order *Order, oppositePrice int64) bool {
	if order.Side == Buy {
		return order.Price >= oppositePrice
	}
	return order.Price <= oppositePrice
}

func (book *OrderBook) rest(order *Order) {
	book.rank++
	order.rank = book.rank
	book.sideQueue(order.Side).insertOrder(order)
	book.orders[order.ID] = order
}

func (book *OrderBook) removeResting(order *Order) {
	book.sideQueue(order.Side).removeOrder(order)
	delete(book.orders, order.ID)
}

func (book *OrderBook) sideQueue(side Side) *queue {
	if side == Buy {
		return book.bidQueue
	}
	return book.askQueue
}

func (book *OrderBook) publish(logs []*BookLog) {
	if len(logs) == 0 {
		return
	}
	book.publishTrader.Publish(logs...)
	for _, log := range logs {
		releaseBookLog(log)
	}
}

// CheckInvariants walks the whole book and reports the first structural
// inconsistency it finds, wrapped in ErrBrokenBook.
func (book *OrderBook) CheckInvariants() error {
	seen := 0
	for _, q := range []*queue{book.bidQueue, book.askQueue} {
		var levels, orders int64
		var err error

		q.forEachLevel(func(lvl *priceLevel) bool {
			levels++
			if lvl.isEmpty() {
				err = fmt.Errorf("%w: empty level %d on side %s", ErrBrokenBook, lvl.price, q.side)
				return false
			}

			var total, count int64
			var lastRank uint64
			var prev *Order
			for o := lvl.head; o != nil; o = o.next {
				switch {
				case o.prev != prev:
					err = fmt.Errorf("%w: order %d has a broken back link", ErrBrokenBook, o.ID)
				case o.level != lvl || o.Price != lvl.price || o.Side != q.side:
					err = fmt.Errorf("%w: order %d sits in the wrong level", ErrBrokenBook, o.ID)
				case o.Quantity <= 0:
					err = fmt.Errorf("%w: order %d has quantity %d", ErrBrokenBook, o.ID, o.Quantity)
				case o.rank <= lastRank:
					err = fmt.Errorf("%w: order %d is out of arrival order", ErrBrokenBook, o.ID)
				case book.orders[o.ID] != o:
					err = fmt.Errorf("%w: order %d is not indexed", ErrBrokenBook, o.ID)
				}
				if err != nil {
					return false
				}
				lastRank = o.rank
				prev = o
				total += o.Quantity
				count++
			}

			if lvl.tail != prev || total != lvl.totalQuantity || count != lvl.count {
				err = fmt.Errorf("%w: level %d aggregates are stale", ErrBrokenBook, lvl.price)
				return false
			}
			orders += count
			return true
		})
		if err != nil {
			return err
		}

		if levels != q.depthCount() || orders != q.orderCount() || int(levels) != len(q.priceList) {
			return fmt.Errorf("%w: side %s counters are stale", ErrBrokenBook, q.side)
		}
		seen += int(orders)
	}

	if seen != len(book.orders) {
		return fmt.Errorf("%w: index holds %d orders, levels hold %d", ErrBrokenBook, len(book.orders), seen)
	}

	bid, okBid := book.BestBid()
	ask, okAsk := book.BestAsk()
	if okBid && okAsk && bid >= ask {
		return fmt.Errorf("%w: crossed book, bid %d ask %d", ErrBrokenBook, bid, ask)
	}

	return nil
}
