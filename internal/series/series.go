// Package series holds the ordered OHLCV bar sequence every indicator reads.
//
// A Series is immutable once built: accessors return copies, so callers may
// hand the same Series to any number of goroutines.
package series

import (
	"errors"
	"fmt"

	"candle-featuresv1/internal/model"
)

// ErrUnordered is returned when bar timestamps are not strictly increasing.
var ErrUnordered = errors.New("bars not strictly ascending by timestamp")

// Series is a time-ascending sequence of bars with no duplicate timestamps.
type Series struct {
	bars []model.Bar
}

// New copies bars into a Series after checking strict timestamp order.
// Bars are assumed already validated by the data source.
func New(bars []model.Bar) (Series, error) {
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp <= bars[i-1].Timestamp {
			return Series{}, fmt.Errorf("%w: index %d ts=%d after ts=%d",
				ErrUnordered, i, bars[i].Timestamp, bars[i-1].Timestamp)
		}
	}
	cp := make([]model.Bar, len(bars))
	copy(cp, bars)
	return Series{bars: cp}, nil
}

// MustNew is New for fixtures that are ordered by construction.
func MustNew(bars []model.Bar) Series {
	s, err := New(bars)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.bars) }

// Bars returns a copy of all bars.
func (s Series) Bars() []model.Bar {
	out := make([]model.Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// At returns bar i and false when i is out of range.
func (s Series) At(i int) (model.Bar, bool) {
	if i < 0 || i >= len(s.bars) {
		return model.Bar{}, false
	}
	return s.bars[i], true
}

// Closes returns the close prices in order.
func (s Series) Closes() []float64 { return s.column(func(b model.Bar) float64 { return b.Close }) }

// Opens returns the open prices in order.
func (s Series) Opens() []float64 { return s.column(func(b model.Bar) float64 { return b.Open }) }

// Highs returns the high prices in order.
func (s Series) Highs() []float64 { return s.column(func(b model.Bar) float64 { return b.High }) }

// Lows returns the low prices in order.
func (s Series) Lows() []float64 { return s.column(func(b model.Bar) float64 { return b.Low }) }

// Volumes returns the volumes in order.
func (s Series) Volumes() []float64 { return s.column(func(b model.Bar) float64 { return b.Volume }) }

// Last returns a Series of the n most recent bars. ok is false when n is
// not positive or exceeds Len; the caller treats that as insufficient data.
func (s Series) Last(n int) (Series, bool) {
	if n <= 0 || n > len(s.bars) {
		return Series{}, false
	}
	return Series{bars: s.bars[len(s.bars)-n:]}, true
}

// Prefix returns bars 0..i inclusive. ok is false when i is out of range.
func (s Series) Prefix(i int) (Series, bool) {
	if i < 0 || i >= len(s.bars) {
		return Series{}, false
	}
	return Series{bars: s.bars[: i+1 : i+1]}, true
}

// LastTimestamp returns the newest bar timestamp, or 0 for an empty series.
func (s Series) LastTimestamp() int64 {
	if len(s.bars) == 0 {
		return 0
	}
	return s.bars[len(s.bars)-1].Timestamp
}

func (s Series) column(f func(model.Bar) float64) []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = f(b)
	}
	return out
}
