package feed

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

var (
	ErrCorruptKey = errors.New("feed: corrupt record key")

	keyPrefix = []byte("event/")
	keyUpper  = []byte("event0") // '0' sorts right after '/'
)

// Store persists a feed in pebble, one record per event keyed by its
// position, so a replay returns events in the order they were appended.
type Store struct {
	db   *pebble.DB
	next uint64
}

// OpenStore opens or creates a store in dir.
func OpenStore(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("feed: open store: %w", err)
	}

	s := &Store{db: db}
	if err := s.loadNext(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) loadNext() error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: keyPrefix,
		UpperBound: keyUpper,
	})
	if err != nil {
		return fmt.Errorf("feed: open iterator: %w", err)
	}
	defer iter.Close()

	if iter.Last() {
		pos, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		s.next = pos + 1
	}
	return iter.Error()
}

// Append writes the events after the ones already stored, atomically.
func (s *Store) Append(events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	pos := s.next
	for _, event := range events {
		val, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("feed: encode event %d: %w", pos, err)
		}
		if err := batch.Set(keyFor(pos), val, nil); err != nil {
			return fmt.Errorf("feed: stage event %d: %w", pos, err)
		}
		pos++
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("feed: commit: %w", err)
	}
	s.next = pos
	return nil
}

// Len returns the number of stored events.
func (s *Store) Len() uint64 {
	return s.next
}

// Replay calls fn for every stored event in append order. It stops at the
// first error returned by fn or when ctx is done.
func (s *Store) Replay(ctx context.Context, fn func(Event) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: keyPrefix,
		UpperBound: keyUpper,
	})
	if err != nil {
		return fmt.Errorf("feed: open iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		var event Event
		if err := json.Unmarshal(iter.Value(), &event); err != nil {
			return fmt.Errorf("feed: decode %q: %w", iter.Key(), err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func keyFor(pos uint64) []byte {
	key := make([]byte, len(keyPrefix)+8)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], pos)
	return key
}

func parseKey(key []byte) (uint64, error) {
	if len(key) != len(keyPrefix)+8 {
		return 0, fmt.Errorf("%w: %q", ErrCorruptKey, key)
	}
	return binary.BigEndian.Uint64(key[len(keyPrefix):]), nil
}
