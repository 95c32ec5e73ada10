package match

// CalculateDepthChange calculates the depth change based on the book log.
// It returns a DepthChange struct indicating which side and price level should be updated.
// Note: For LogTypeMatch, the side returned is the resting side (opposite of the log's side).
func CalculateDepthChange(log *BookLog) DepthChange {
	switch log.Type {
	case LogTypeOpen:
		return DepthChange{
			Side:       log.Side,
			Price:      log.Price,
			SizeDiff:   log.Quantity,
			OrdersDiff: 1,
		}
	case LogTypeCancel:
		return DepthChange{
			Side:       log.Side,
			Price:      log.Price,
			SizeDiff:   -log.Quantity,
			OrdersDiff: -1,
		}
	case LogTypeMatch:
		// Match reduces liquidity on the resting side.
		change := DepthChange{
			Side:     log.Side.Opposite(),
			Price:    log.Price,
			SizeDiff: -log.Quantity,
		}
		if log.RestingLeft == 0 {
			change.OrdersDiff = -1
		}
		return change
	case LogTypeAmend:
		// A modify always loses priority: the old order leaves the book and the
		// replacement arrives through the Open/Match events that follow.
		return DepthChange{
			Side:       log.Side,
			Price:      log.OldPrice,
			SizeDiff:   -log.OldQuantity,
			OrdersDiff: -1,
		}
	}

	return DepthChange{}
}
