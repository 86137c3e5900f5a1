// Package indicator provides technical indicator calculations over bar data.
//
// Every indicator comes in two forms. The pure functions (SMA, EMA, RSI,
// VWAP, ATR, OBV, MACD, MACI) take a price slice or a series.Series and
// return a Value that is Undefined when the input is too short. The
// streaming States carry a bounded window forward one bar at a time and
// return exactly the value the pure function would return for the same
// prefix, so a full backfill is a single forward pass.
package indicator

import "candle-featuresv1/internal/model"

// Default lookbacks used by reports and feature rows.
const (
	DefaultRSIPeriod  = 14
	DefaultATRPeriod  = 14
	DefaultMACDShort  = 12
	DefaultMACDLong   = 26
	DefaultMACDSignal = 9
)

// Indicator is the interface for all streaming technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA_20", "MACD_12_26").
	Name() string

	// Update feeds the next closed bar and recalculates.
	Update(bar model.Bar)

	// Value returns the current value, Undefined until Ready.
	Value() Value

	// Ready returns true when enough bars have been accumulated.
	Ready() bool

	// Peek computes what Value() would be if bar were added next,
	// WITHOUT mutating internal state. Used for forming bars.
	Peek(bar model.Bar) Value
}
