package model

import (
	"encoding/json"
	"time"
)

// IndicatorResult holds a computed indicator value for one market.
// Ready is false (and Value zero) while the indicator lacks history.
type IndicatorResult struct {
	Name     string    `json:"name"` // e.g. "SMA_20", "RSI_14"
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Value    float64   `json:"value"`
	TS       time.Time `json:"ts"`    // bar open time that produced this value
	Ready    bool      `json:"ready"` // true when indicator has enough data
	Live     bool      `json:"live"`  // true for preview values from forming bars
}

// Key returns "ind:{name}:{symbol}:{interval}".
func (r *IndicatorResult) Key() string {
	return "ind:" + r.Name + ":" + MarketKey(r.Symbol, r.Interval)
}

// JSON returns the JSON-encoded indicator result.
func (r *IndicatorResult) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
