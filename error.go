package match

import (
	"errors"
	"strconv"
)

var (
	ErrInvalidParam   = errors.New("the param is invalid")
	ErrDuplicateOrder = errors.New("order id already exists")
	ErrTimeout        = errors.New("timeout")
	ErrShutdown       = errors.New("engine is shutting down")
	ErrNotFound       = errors.New("not found")
	ErrSequenceGap    = errors.New("sequence gap detected")
	ErrBrokenBook     = errors.New("order book invariant violated")
)

// DuplicateOrderError is returned by AddOrder when the order id is already resting.
// The book is left untouched.
type DuplicateOrderError struct {
	OrderID OrderID
}

func (e *DuplicateOrderError) Error() string {
	return "order id " + strconv.FormatUint(e.OrderID, 10) + " already exists"
}

func (e *DuplicateOrderError) Is(target error) bool {
	return target == ErrDuplicateOrder
}
