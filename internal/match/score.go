package match

import (
	"encoding/json"
	"math"
)

// Score is the result of a match-score computation: either a calibrated
// value in [0, 100], or an explicit no-signal state when the available
// evidence is insufficient. No-signal is never coerced to 0 or to a
// neutral 50; callers must handle it distinctly (e.g. omit the shop from
// a ranked list rather than showing a misleading neutral score).
type Score struct {
	Value float64
	Valid bool // false means no-signal
}

// NewScore returns a valid score with the given value.
func NewScore(value float64) Score {
	return Score{Value: value, Valid: true}
}

// NoSignal returns the explicit no-signal score.
func NoSignal() Score {
	return Score{}
}

// MarshalJSON renders a valid score as its number and no-signal as null,
// keeping the two distinguishable on the wire.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// UnmarshalJSON parses a number or null.
func (s *Score) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = NoSignal()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = NewScore(v)
	return nil
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
