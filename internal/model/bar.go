package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Bar is one OHLCV candle for a single interval.
// Timestamp is the bucket open time in milliseconds since the Unix epoch.
type Bar struct {
	Timestamp int64   `json:"t" parquet:"t"`
	Open      float64 `json:"o" parquet:"o"`
	High      float64 `json:"h" parquet:"h"`
	Low       float64 `json:"l" parquet:"l"`
	Close     float64 `json:"c" parquet:"c"`
	Volume    float64 `json:"v" parquet:"v"`
}

// ErrInvalidBar is returned by Validate for bars that break the OHLC invariant.
var ErrInvalidBar = errors.New("invalid bar")

// Validate checks that every field is finite and non-negative and that
// low <= min(open, close) <= max(open, close) <= high.
func (b Bar) Validate() error {
	for _, f := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return fmt.Errorf("%w: ts=%d non-finite or negative field", ErrInvalidBar, b.Timestamp)
		}
	}
	lo, hi := math.Min(b.Open, b.Close), math.Max(b.Open, b.Close)
	if b.Low > lo || hi > b.High {
		return fmt.Errorf("%w: ts=%d low=%g open=%g close=%g high=%g",
			ErrInvalidBar, b.Timestamp, b.Low, b.Open, b.Close, b.High)
	}
	return nil
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// Kline is a bar tagged with the market it belongs to. It is what the live
// stream emits; Final is false while the interval is still forming.
type Kline struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Bar
	Final bool `json:"final"`
}

// Key returns "symbol:interval".
func (k *Kline) Key() string {
	return MarketKey(k.Symbol, k.Interval)
}

// MarketKey builds the "symbol:interval" key used across stores and the engine.
func MarketKey(symbol, interval string) string {
	return symbol + ":" + interval
}
