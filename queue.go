package match

import (
	"github.com/huandu/skiplist"
)

// queue holds one side of the book: price levels ordered best price first.
type queue struct {
	side        Side
	totalOrders int64
	depths      int64
	depthList   *skiplist.SkipList
	priceList   map[int64]*skiplist.Element
}

// NewBuyerQueue creates a new queue for buy orders (bids).
// The levels are sorted by price in descending order (highest price first).
func NewBuyerQueue() *queue {
	return &queue{
		side: Buy,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			p1, _ := lhs.(int64)
			p2, _ := rhs.(int64)

			if p1 < p2 {
				return 1
			} else if p1 > p2 {
				return -1
			}

			return 0
		})),
		priceList: make(map[int64]*skiplist.Element),
	}
}

// NewSellerQueue creates a new queue for sell orders (asks).
// The levels are sorted by price in ascending order (lowest price first).
func NewSellerQueue() *queue {
	return &queue{
		side: Sell,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			p1, _ := lhs.(int64)
			p2, _ := rhs.(int64)

			if p1 > p2 {
				return 1
			} else if p1 < p2 {
				return -1
			}

			return 0
		})),
		priceList: make(map[int64]*skiplist.Element),
	}
}

// level returns the price level at price, or nil.
func (q *queue) level(price int64) *priceLevel {
	el, ok := q.priceList[price]
	if !ok {
		return nil
	}
	lvl, _ := el.Value.(*priceLevel)
	return lvl
}

// insertOrder appends the order to the back of its price level,
// creating the level when it does not exist.
func (q *queue) insertOrder(order *Order) {
	lvl := q.level(order.Price)
	if lvl == nil {
		lvl = newPriceLevel(order.Price)
		el := q.depthList.Set(order.Price, lvl)
		q.priceList[order.Price] = el
		q.depths++
	}

	lvl.append(order)
	q.totalOrders++
}

// removeOrder unlinks a resting order and drops its level once empty.
func (q *queue) removeOrder(order *Order) {
	lvl := order.level
	if lvl == nil {
		return
	}

	lvl.remove(order)
	q.totalOrders--

	if lvl.isEmpty() {
		q.dropLevel(lvl.price)
	}
}

func (q *queue) dropLevel(price int64) {
	el, ok := q.priceList[price]
	if !ok {
		return
	}
	q.depthList.RemoveElement(el)
	delete(q.priceList, price)
	q.depths--
}

// bestLevel returns the level with the best price, or nil when the side is empty.
func (q *queue) bestLevel() *priceLevel {
	el := q.depthList.Front()
	if el == nil {
		return nil
	}

	lvl, _ := el.Value.(*priceLevel)
	return lvl
}

// bestPrice returns the best price of the side.
func (q *queue) bestPrice() (int64, bool) {
	lvl := q.bestLevel()
	if lvl == nil {
		return 0, false
	}
	return lvl.price, true
}

// peekHeadOrder returns the oldest order at the best price without removing it.
func (q *queue) peekHeadOrder() *Order {
	lvl := q.bestLevel()
	if lvl == nil {
		return nil
	}
	return lvl.head
}

// orderCount returns the total number of orders in the queue.
func (q *queue) orderCount() int64 {
	return q.totalOrders
}

// depthCount returns the number of price levels in the queue.
func (q *queue) depthCount() int64 {
	return q.depths
}

// forEachLevel walks levels best price first until fn returns false.
func (q *queue) forEachLevel(fn func(lvl *priceLevel) bool) {
	for el := q.depthList.Front(); el != nil; el = el.Next() {
		lvl, _ := el.Value.(*priceLevel)
		if !fn(lvl) {
			return
		}
	}
}

// depth returns the aggregated levels up to limit. A limit of 0 returns all levels.
func (q *queue) depth(limit uint32) []*DepthItem {
	size := q.depths
	if limit > 0 && int64(limit) < size {
		size = int64(limit)
	}
	result := make([]*DepthItem, 0, size)

	q.forEachLevel(func(lvl *priceLevel) bool {
		result = append(result, lvl.depthItem())
		return int64(len(result)) < size
	})

	return result
}

// toSnapshot serializes the resting orders best price first, preserving
// time priority inside each level.
func (q *queue) toSnapshot() []Order {
	snapshots := make([]Order, 0, q.totalOrders)

	q.forEachLevel(func(lvl *priceLevel) bool {
		for order := lvl.head; order != nil; order = order.next {
			snapshots = append(snapshots, Order{
				ID:        order.ID,
				Side:      order.Side,
				Price:     order.Price,
				Quantity:  order.Quantity,
				Timestamp: order.Timestamp,
			})
		}
		return true
	})

	return snapshots
}
