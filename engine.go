package match

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/0x5487/lob-backtest/protocol"
)

// Engine serialises commands from many producers onto one OrderBook.
// Producers enqueue commands into a ring buffer; a single consumer goroutine
// applies them in order and publishes a fresh BookSnapshot after each one.
// Results reach callers through the PublishLog of the book.
type Engine struct {
	book         *OrderBook
	ring         *RingBuffer[*protocol.Command]
	serializer   protocol.Serializer
	cmdSeq       *Sequence
	lastCmdSeqID atomic.Uint64
	snapshot     atomic.Pointer[BookSnapshot]
	duplicates   atomic.Uint64
	rejected     atomic.Uint64
	isShutdown   atomic.Bool
}

type EngineOption func(*engineConfig)

type engineConfig struct {
	ringSize   int64
	serializer protocol.Serializer
	bookOpts   []OrderBookOption
}

// WithRingSize sets the command ring capacity. It must be a power of 2.
func WithRingSize(size int64) EngineOption {
	return func(cfg *engineConfig) {
		cfg.ringSize = size
	}
}

// WithSerializer sets the payload codec. Defaults to JSON.
func WithSerializer(s protocol.Serializer) EngineOption {
	return func(cfg *engineConfig) {
		cfg.serializer = s
	}
}

// WithBookOptions passes options to the underlying OrderBook.
func WithBookOptions(opts ...OrderBookOption) EngineOption {
	return func(cfg *engineConfig) {
		cfg.bookOpts = append(cfg.bookOpts, opts...)
	}
}

// NewEngine creates an engine. Call Start before enqueuing commands.
func NewEngine(opts ...EngineOption) *Engine {
	cfg := engineConfig{
		ringSize:   defaultRingSize,
		serializer: protocol.DefaultJSONSerializer{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	engine := &Engine{
		book:       NewOrderBook(cfg.bookOpts...),
		serializer: cfg.serializer,
		cmdSeq:     NewSequence(0),
	}
	engine.ring = NewRingBuffer[*protocol.Command](cfg.ringSize, engine)
	engine.snapshot.Store(engine.book.Snapshot())

	return engine
}

// Start launches the consumer goroutine.
func (engine *Engine) Start() {
	engine.ring.Start()
}

// EnqueueCommand hands a command to the consumer. A zero SeqID is replaced
// by the next engine command sequence.
func (engine *Engine) EnqueueCommand(cmd *protocol.Command) error {
	if engine.isShutdown.Load() {
		return ErrShutdown
	}
	if cmd.SeqID == 0 {
		cmd.SeqID = engine.cmdSeq.Next()
	}
	return engine.ring.Publish(cmd)
}

// PlaceOrder enqueues a new limit order.
func (engine *Engine) PlaceOrder(ctx context.Context, cmd *protocol.PlaceOrderCommand) error {
	return engine.enqueue(ctx, protocol.CmdPlaceOrder, cmd)
}

// CancelOrder enqueues a cancel. Unknown ids are ignored by the book.
func (engine *Engine) CancelOrder(ctx context.Context, cmd *protocol.CancelOrderCommand) error {
	return engine.enqueue(ctx, protocol.CmdCancelOrder, cmd)
}

// ModifyOrder enqueues a cancel-and-replace.
func (engine *Engine) ModifyOrder(ctx context.Context, cmd *protocol.ModifyOrderCommand) error {
	return engine.enqueue(ctx, protocol.CmdModifyOrder, cmd)
}

func (engine *Engine) enqueue(ctx context.Context, typ protocol.CommandType, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bytes, err := engine.serializer.Marshal(payload)
	if err != nil {
		return err
	}

	return engine.EnqueueCommand(&protocol.Command{
		Version: 1,
		Type:    typ,
		Payload: bytes,
	})
}

// OnEvent applies one command. It runs on the consumer goroutine only.
func (engine *Engine) OnEvent(cmd *protocol.Command) {
	if err := engine.apply(cmd); err != nil {
		var dup *DuplicateOrderError
		if errors.As(err, &dup) {
			engine.duplicates.Add(1)
		} else {
			engine.rejected.Add(1)
		}
		logger.Warn("command rejected", "seq_id", cmd.SeqID, "type", cmd.Type.String(), "error", err)
	}

	engine.lastCmdSeqID.Store(cmd.SeqID)

	snap := engine.book.Snapshot()
	snap.LastCmdSeqID = cmd.SeqID
	engine.snapshot.Store(snap)
}

func (engine *Engine) apply(cmd *protocol.Command) error {
	switch cmd.Type {
	case protocol.CmdPlaceOrder:
		var payload protocol.PlaceOrderCommand
		if err := engine.serializer.Unmarshal(cmd.Payload, &payload); err != nil {
			return err
		}
		_, err := engine.book.AddOrder(Order{
			ID:        payload.OrderID,
			Side:      payload.Side,
			Price:     payload.Price,
			Quantity:  payload.Quantity,
			Timestamp: payload.Timestamp,
		})
		return err
	case protocol.CmdCancelOrder:
		var payload protocol.CancelOrderCommand
		if err := engine.serializer.Unmarshal(cmd.Payload, &payload); err != nil {
			return err
		}
		engine.book.CancelOrder(payload.OrderID)
		return nil
	case protocol.CmdModifyOrder:
		var payload protocol.ModifyOrderCommand
		if err := engine.serializer.Unmarshal(cmd.Payload, &payload); err != nil {
			return err
		}
		_, err := engine.book.ModifyOrder(payload.OrderID, payload.NewQuantity, payload.NewPrice)
		return err
	}

	return ErrInvalidParam
}

// Snapshot returns the book state after the last applied command.
// The returned value is shared and must not be modified.
func (engine *Engine) Snapshot() *BookSnapshot {
	return engine.snapshot.Load()
}

// BestBid returns the best bid after the last applied command.
func (engine *Engine) BestBid() (int64, bool) {
	return engine.snapshot.Load().BestBid()
}

// BestAsk returns the best ask after the last applied command.
func (engine *Engine) BestAsk() (int64, bool) {
	return engine.snapshot.Load().BestAsk()
}

// LastCmdSeqID returns the SeqID of the last applied command.
func (engine *Engine) LastCmdSeqID() uint64 {
	return engine.lastCmdSeqID.Load()
}

// Duplicates returns how many place orders were rejected as duplicates.
func (engine *Engine) Duplicates() uint64 {
	return engine.duplicates.Load()
}

// Rejected returns how many commands failed for any other reason.
func (engine *Engine) Rejected() uint64 {
	return engine.rejected.Load()
}

// Shutdown stops accepting commands and waits until the queued ones are applied.
// Returns ErrTimeout if ctx expires first.
func (engine *Engine) Shutdown(ctx context.Context) error {
	engine.isShutdown.Store(true)

	if err := engine.ring.Shutdown(ctx); err != nil {
		logger.Error("engine shutdown timed out", "pending", engine.ring.GetPendingEvents())
		return ErrTimeout
	}
	return nil
}
