package protocol

import "errors"

// ErrUnknownSide is returned when a side cannot be parsed.
var ErrUnknownSide = errors.New("protocol: unknown side")

// Side represents the order side (Buy/Sell).
// The zero value means "not set" and is never valid on an order.
type Side int8

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

// Valid reports whether s is one of the two order sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the side an order of side s matches against.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	}
	return s
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	}
	return "UNKNOWN"
}

// MarshalText encodes the side as "BUY" or "SELL".
func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, ErrUnknownSide
	}
	return []byte(s.String()), nil
}

// UnmarshalText parses "BUY" or "SELL".
func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "BUY":
		*s = SideBuy
	case "SELL":
		*s = SideSell
	default:
		return ErrUnknownSide
	}
	return nil
}

// LogType represents the type of event log.
type LogType string

const (
	LogTypeOpen   LogType = "open"
	LogTypeMatch  LogType = "match"
	LogTypeCancel LogType = "cancel"
	LogTypeAmend  LogType = "amend"
)
