package match

// BookSnapshot is a consistent, detached copy of the aggregated book.
type BookSnapshot struct {
	SchemaVersion int          `json:"schema_version"`
	SeqID         uint64       `json:"seq_id"`          // last BookLog sequence ID
	LastCmdSeqID  uint64       `json:"last_cmd_seq_id"` // last command applied by the Engine
	TradeID       uint64       `json:"trade_id"`        // last trade ID
	Bids          []*DepthItem `json:"bids"`            // best price first
	Asks          []*DepthItem `json:"asks"`            // best price first
}

// BestBid returns the highest bid price in the snapshot.
func (s *BookSnapshot) BestBid() (int64, bool) {
	if s == nil || len(s.Bids) == 0 {
		return 0, false
	}
	return s.Bids[0].Price, true
}

// BestAsk returns the lowest ask price in the snapshot.
func (s *BookSnapshot) BestAsk() (int64, bool) {
	if s == nil || len(s.Asks) == 0 {
		return 0, false
	}
	return s.Asks[0].Price, true
}
