package protocol

// CommandType defines the type of the command (using uint8 for memory alignment and performance)
type CommandType uint8

const (
	CmdUnknown     CommandType = 0
	CmdPlaceOrder  CommandType = 51
	CmdCancelOrder CommandType = 52
	CmdModifyOrder CommandType = 53
)

func (t CommandType) String() string {
	switch t {
	case CmdPlaceOrder:
		return "place_order"
	case CmdCancelOrder:
		return "cancel_order"
	case CmdModifyOrder:
		return "modify_order"
	}
	return "unknown"
}

// Command is the standard carrier for commands entering the Engine.
type Command struct {
	// Version is the protocol version for backward compatibility.
	Version uint8 `json:"version"`

	// SeqID is assigned by the producer and used for ordering and deduplication.
	SeqID uint64 `json:"seq_id"`

	// Type identifies the payload type for fast routing.
	Type CommandType `json:"type"`

	// Payload contains the serialized business data (e.g., JSON bytes of PlaceOrderCommand).
	Payload []byte `json:"payload"`

	// Metadata stores non-business context (e.g., Tracing ID, Source).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PlaceOrderCommand is the payload for placing a new limit order.
type PlaceOrderCommand struct {
	OrderID   uint64 `json:"order_id"`
	Side      Side   `json:"side"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	Timestamp int64  `json:"timestamp"`
}

// CancelOrderCommand is the payload for cancelling an existing order.
type CancelOrderCommand struct {
	OrderID uint64 `json:"order_id"`
}

// ModifyOrderCommand is the payload for replacing an existing order.
// A nil NewPrice keeps the current price.
type ModifyOrderCommand struct {
	OrderID     uint64 `json:"order_id"`
	NewQuantity int64  `json:"new_quantity"`
	NewPrice    *int64 `json:"new_price,omitempty"`
}
