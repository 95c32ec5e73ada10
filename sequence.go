package match

import "sync/atomic"

// Sequence hands out strictly increasing ids. The owner of an id space
// (book, generator, strategy) holds its own Sequence and passes it by pointer.
type Sequence struct {
	last atomic.Uint64
}

// NewSequence creates a sequence whose first Next returns start+1.
func NewSequence(start uint64) *Sequence {
	s := &Sequence{}
	s.last.Store(start)
	return s
}

// Next returns the next id.
func (s *Sequence) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued id.
func (s *Sequence) Current() uint64 {
	return s.last.Load()
}

// Reset sets the last issued id.
func (s *Sequence) Reset(v uint64) {
	s.last.Store(v)
}
