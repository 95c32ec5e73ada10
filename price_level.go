package match

// priceLevel is the FIFO bucket of resting orders sharing one price.
// Orders are linked through their own prev/next pointers so that removing
// an order found through the book index is O(1).
type priceLevel struct {
	price         int64
	totalQuantity int64
	count         int64
	head          *Order
	tail          *Order
}

func newPriceLevel(price int64) *priceLevel {
	return &priceLevel{price: price}
}

// append adds the order at the back of the queue.
func (l *priceLevel) append(order *Order) {
	order.prev = l.tail
	order.next = nil
	order.level = l
	if l.tail != nil {
		l.tail.next = order
	}
	l.tail = order
	if l.head == nil {
		l.head = order
	}

	l.totalQuantity += order.Quantity
	l.count++
}

// popFront removes and returns the oldest order, or nil when empty.
func (l *priceLevel) popFront() *Order {
	order := l.head
	if order != nil {
		l.remove(order)
	}
	return order
}

// remove unlinks an order of this level without disturbing the others.
func (l *priceLevel) remove(order *Order) {
	if order.prev != nil {
		order.prev.next = order.next
	} else {
		l.head = order.next
	}

	if order.next != nil {
		order.next.prev = order.prev
	} else {
		l.tail = order.prev
	}

	// Clear pointers to avoid leaks
	order.next = nil
	order.prev = nil
	order.level = nil

	l.totalQuantity -= order.Quantity
	l.count--
}

// reduce takes qty off a resting order in place, keeping its queue position.
func (l *priceLevel) reduce(order *Order, qty int64) {
	order.Quantity -= qty
	l.totalQuantity -= qty
}

func (l *priceLevel) isEmpty() bool {
	return l.head == nil
}

func (l *priceLevel) depthItem() *DepthItem {
	return &DepthItem{
		Price:    l.price,
		Quantity: l.totalQuantity,
		Count:    l.count,
	}
}
