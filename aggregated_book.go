package match

import (
	"fmt"
	"sync"

	"github.com/igrmk/treemap/v2"
)

// AggregatedBook maintains a simplified view of the order book,
// tracking only price levels and their aggregated sizes (depth).
// It is designed for downstream services that need to rebuild
// order book state from BookLog events. It implements PublishLog so it
// can be attached to an OrderBook directly.
type AggregatedBook struct {
	mu    sync.RWMutex
	seqID uint64 // Last processed SequenceID for gap detection and deduplication
	ask   *treemap.TreeMap[int64, *DepthItem]
	bid   *treemap.TreeMap[int64, *DepthItem]
}

// NewAggregatedBook creates a new AggregatedBook instance with empty ask and bid sides.
// Both trees iterate best price first.
func NewAggregatedBook() *AggregatedBook {
	return &AggregatedBook{
		ask: newAskTree(),
		bid: newBidTree(),
	}
}

func newAskTree() *treemap.TreeMap[int64, *DepthItem] {
	return treemap.NewWithKeyCompare[int64, *DepthItem](func(a, b int64) bool {
		return a < b
	})
}

func newBidTree() *treemap.TreeMap[int64, *DepthItem] {
	return treemap.NewWithKeyCompare[int64, *DepthItem](func(a, b int64) bool {
		return a > b
	})
}

// SequenceID returns the last processed sequence ID.
// Used for synchronization and gap detection during rebuild.
func (ab *AggregatedBook) SequenceID() uint64 {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return ab.seqID
}

// Replay applies a BookLog event to update the aggregated book state.
// Events already seen are skipped. A missing event returns ErrSequenceGap
// and leaves the book unchanged.
func (ab *AggregatedBook) Replay(log *BookLog) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if log.SequenceID <= ab.seqID {
		return nil
	}
	if log.SequenceID != ab.seqID+1 {
		return fmt.Errorf("%w: expected %d, got %d", ErrSequenceGap, ab.seqID+1, log.SequenceID)
	}

	ab.apply(CalculateDepthChange(log))
	ab.seqID = log.SequenceID
	return nil
}

// Publish replays each log in order. Replay errors are logged, the
// remaining logs of the batch are skipped until the book is rebuilt.
func (ab *AggregatedBook) Publish(logs ...*BookLog) {
	for _, log := range logs {
		if err := ab.Replay(log); err != nil {
			logger.Error("aggregated book replay failed", "seq_id", log.SequenceID, "error", err)
			return
		}
	}
}

func (ab *AggregatedBook) apply(change DepthChange) {
	if change.SizeDiff == 0 && change.OrdersDiff == 0 {
		return
	}

	tree := ab.ask
	if change.Side == Buy {
		tree = ab.bid
	}

	item, ok := tree.Get(change.Price)
	if !ok {
		item = &DepthItem{Price: change.Price}
		tree.Set(change.Price, item)
	}

	item.Quantity += change.SizeDiff
	item.Count += change.OrdersDiff
	if item.Quantity <= 0 {
		tree.Del(change.Price)
	}
}

// OnRebuild resets the aggregated book from a snapshot.
// This should be called before replaying events that follow the snapshot.
func (ab *AggregatedBook) OnRebuild(snap *BookSnapshot) error {
	if snap == nil {
		return ErrInvalidParam
	}

	ab.mu.Lock()
	defer ab.mu.Unlock()

	ab.ask = newAskTree()
	ab.bid = newBidTree()
	for _, item := range snap.Asks {
		cpy := *item
		ab.ask.Set(item.Price, &cpy)
	}
	for _, item := range snap.Bids {
		cpy := *item
		ab.bid.Set(item.Price, &cpy)
	}
	ab.seqID = snap.SeqID
	return nil
}

// Depth returns the aggregated size at a specific price level for the given side.
// Returns ErrNotFound if the price level does not exist.
func (ab *AggregatedBook) Depth(side Side, price int64) (int64, error) {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	tree := ab.ask
	if side == Buy {
		tree = ab.bid
	}

	item, ok := tree.Get(price)
	if !ok {
		return 0, ErrNotFound
	}
	return item.Quantity, nil
}

// Levels returns copies of up to limit levels of one side, best price first.
// A limit of 0 returns every level.
func (ab *AggregatedBook) Levels(side Side, limit uint32) []DepthItem {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	tree := ab.ask
	if side == Buy {
		tree = ab.bid
	}

	result := make([]DepthItem, 0, tree.Len())
	for it := tree.Iterator(); it.Valid(); it.Next() {
		if limit > 0 && uint32(len(result)) >= limit {
			break
		}
		result = append(result, *it.Value())
	}
	return result
}
