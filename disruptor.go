package match

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
)

// ErrDisruptorTimeout is returned when shutdown times out
var ErrDisruptorTimeout = errors.New("disruptor: shutdown timeout")

// EventHandler consumes events in publish order on the consumer goroutine.
type EventHandler[T any] interface {
	OnEvent(event T)
}

// RingBuffer is a multi-producer single-consumer ring buffer.
type RingBuffer[T any] struct {
	// Cache line padding to avoid false sharing
	_                [56]byte
	producerSequence atomic.Int64
	_                [56]byte
	consumerSequence atomic.Int64
	_                [56]byte

	buffer     []T
	bufferMask int64
	capacity   int64

	// published[i] holds the sequence last written to slot i
	published []int64

	handler EventHandler[T]

	isStarted  atomic.Bool
	isShutdown atomic.Bool
	done       chan struct{}
}

// NewRingBuffer creates a ring buffer. capacity must be a power of 2.
func NewRingBuffer[T any](capacity int64, handler EventHandler[T]) *RingBuffer[T] {
	if capacity <= 0 || (capacity&(capacity-1)) != 0 {
		panic("size must be a power of 2")
	}

	rb := &RingBuffer[T]{
		buffer:     make([]T, capacity),
		published:  make([]int64, capacity),
		capacity:   capacity,
		bufferMask: capacity - 1,
		handler:    handler,
		done:       make(chan struct{}),
	}

	rb.producerSequence.Store(-1)
	rb.consumerSequence.Store(-1)

	for i := range rb.published {
		atomic.StoreInt64(&rb.published[i], -1)
	}

	return rb
}

// Publish claims a slot and writes the event. It is safe for concurrent
// producers and spins while the buffer is full. After Shutdown it returns
// ErrShutdown and drops the event.
func (rb *RingBuffer[T]) Publish(event T) error {
	if rb.isShutdown.Load() {
		return ErrShutdown
	}

	var nextSeq int64
	for {
		currentProducerSeq := rb.producerSequence.Load()
		nextSeq = currentProducerSeq + 1

		// the producer may not lap the consumer
		wrapPoint := nextSeq - rb.capacity
		if wrapPoint > rb.consumerSequence.Load() {
			runtime.Gosched()
			continue
		}

		if rb.producerSequence.CompareAndSwap(currentProducerSeq, nextSeq) {
			break
		}
		runtime.Gosched()
	}

	index := nextSeq & rb.bufferMask
	rb.buffer[index] = event

	// make the slot visible to the consumer
	atomic.StoreInt64(&rb.published[index], nextSeq)
	return nil
}

// Start launches the consumer goroutine. Calling it twice is a no-op.
func (rb *RingBuffer[T]) Start() {
	if rb.isStarted.CompareAndSwap(false, true) {
		go rb.consumerLoop()
	}
}

// Run consumes events on the calling goroutine until Shutdown drains the buffer.
func (rb *RingBuffer[T]) Run() {
	if rb.isStarted.CompareAndSwap(false, true) {
		rb.consumerLoop()
	}
}

// Shutdown stops intake and waits until every claimed event was handled.
func (rb *RingBuffer[T]) Shutdown(ctx context.Context) error {
	rb.isShutdown.Store(true)

	if !rb.isStarted.Load() {
		return nil
	}

	select {
	case <-rb.done:
		return nil
	case <-ctx.Done():
		return ErrDisruptorTimeout
	}
}

func (rb *RingBuffer[T]) consumerLoop() {
	defer close(rb.done)

	nextConsumerSeq := rb.consumerSequence.Load() + 1

	for {
		availableSeq := rb.producerSequence.Load()

		if rb.isShutdown.Load() {
			rb.processRemainingEvents(nextConsumerSeq)
			return
		}

		processed := false
		for nextConsumerSeq <= availableSeq {
			rb.consume(nextConsumerSeq)
			nextConsumerSeq++
			processed = true
		}

		if !processed {
			runtime.Gosched()
		}
	}
}

// processRemainingEvents drains events claimed before shutdown. The producer
// sequence is re-read so a producer racing the shutdown flag is not lost.
func (rb *RingBuffer[T]) processRemainingEvents(nextConsumerSeq int64) {
	for nextConsumerSeq <= rb.producerSequence.Load() {
		rb.consume(nextConsumerSeq)
		nextConsumerSeq++
	}
}

func (rb *RingBuffer[T]) consume(seq int64) {
	index := seq & rb.bufferMask

	// wait for the producer that claimed seq to finish writing
	for atomic.LoadInt64(&rb.published[index]) != seq {
		runtime.Gosched()
	}

	event := rb.buffer[index]
	var zero T
	rb.buffer[index] = zero
	rb.handler.OnEvent(event)

	rb.consumerSequence.Store(seq)
}

// ConsumerSequence returns the last handled sequence.
func (rb *RingBuffer[T]) ConsumerSequence() int64 {
	return rb.consumerSequence.Load()
}

// ProducerSequence returns the last claimed sequence.
func (rb *RingBuffer[T]) ProducerSequence() int64 {
	return rb.producerSequence.Load()
}

// GetPendingEvents returns the number of claimed but unhandled events.
func (rb *RingBuffer[T]) GetPendingEvents() int64 {
	producerSeq := rb.producerSequence.Load()
	consumerSeq := rb.consumerSequence.Load()
	return producerSeq - consumerSeq
}
