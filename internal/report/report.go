// Package report computes the full indicator analysis for one market and
// renders it as text.
package report

import (
	"context"
	"fmt"
	"time"

	"candle-featuresv1/internal/indicator"
	"candle-featuresv1/internal/marketdata"
)

// Analysis windows.
const (
	PriceHistory = 400
	RangeHistory = 100
	Overbought   = 70.0
	Oversold     = 30.0
)

// SMAPeriods are the moving-average periods reported, shortest first.
var SMAPeriods = []int{7, 15, 50, 200, 400}

// RSIZone classifies an RSI reading.
type RSIZone string

const (
	ZoneUnknown    RSIZone = ""
	ZoneOverbought RSIZone = "overbought"
	ZoneOversold   RSIZone = "oversold"
	ZoneNeutral    RSIZone = "neutral"
)

// ClassifyRSI returns overbought above 70, oversold below 30, else neutral.
func ClassifyRSI(rsi indicator.Value) RSIZone {
	x, ok := rsi.Float()
	switch {
	case !ok:
		return ZoneUnknown
	case x > Overbought:
		return ZoneOverbought
	case x < Oversold:
		return ZoneOversold
	default:
		return ZoneNeutral
	}
}

// Side is which side of VWAP the current price sits on.
type Side string

const (
	SideUnknown Side = ""
	SideBuy     Side = "buy-side"
	SideSell    Side = "sell-side"
)

// VWAPSide is buy-side when price is strictly above VWAP, else sell-side.
func VWAPSide(price float64, vwap indicator.Value) Side {
	x, ok := vwap.Float()
	switch {
	case !ok:
		return SideUnknown
	case price > x:
		return SideBuy
	default:
		return SideSell
	}
}

// PeriodValue is one SMA reading.
type PeriodValue struct {
	Period int             `json:"period"`
	Value  indicator.Value `json:"value"`
}

// Snapshot is the analysis of one market at one moment.
type Snapshot struct {
	Symbol      string          `json:"symbol"`
	Interval    string          `json:"interval"`
	Exchange    string          `json:"exchange"`
	Currency    string          `json:"currency"`
	Price       float64         `json:"price"`
	SMA         []PeriodValue   `json:"sma"`
	RSI         indicator.Value `json:"rsi"`
	RSIZone     RSIZone         `json:"rsi_zone,omitempty"`
	VWAP        indicator.Value `json:"vwap"`
	VWAPSide    Side            `json:"vwap_side,omitempty"`
	ATR         indicator.Value `json:"atr"`
	OBV         indicator.Value `json:"obv"`
	MACD        indicator.Value `json:"macd"`
	MACI        indicator.Value `json:"maci"`
	Candles     int             `json:"candles"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Analyze fetches the current price and the last 400 candles of symbol and
// computes every reported indicator. ATR and OBV use the most recent 100 of
// those candles. Short histories yield undefined values, not errors.
func Analyze(ctx context.Context, f marketdata.Fetcher, symbol, interval string) (*Snapshot, error) {
	if err := marketdata.CheckInterval(interval); err != nil {
		return nil, err
	}

	price, err := f.FetchLatestPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("report %s: price: %w", symbol, err)
	}
	s, err := f.FetchCandles(ctx, symbol, PriceHistory, interval)
	if err != nil {
		return nil, fmt.Errorf("report %s %s: candles: %w", symbol, interval, err)
	}

	closes := s.Closes()
	snap := &Snapshot{
		Symbol:      price.Symbol,
		Interval:    interval,
		Exchange:    price.Exchange,
		Currency:    price.Currency,
		Price:       price.Price,
		Candles:     s.Len(),
		GeneratedAt: time.Now().UTC(),
	}
	if snap.Symbol == "" {
		snap.Symbol = symbol
	}

	for _, p := range SMAPeriods {
		snap.SMA = append(snap.SMA, PeriodValue{Period: p, Value: indicator.SMA(closes, p)})
	}

	snap.RSI = indicator.RSI(closes, indicator.DefaultRSIPeriod)
	snap.RSIZone = ClassifyRSI(snap.RSI)

	snap.VWAP = indicator.VWAP(indicator.PriceVolumes(s))
	snap.VWAPSide = VWAPSide(snap.Price, snap.VWAP)

	recent, ok := s.Last(RangeHistory)
	if !ok {
		recent = s
	}
	snap.ATR = indicator.ATR(recent, indicator.DefaultATRPeriod)
	snap.OBV = indicator.OBV(recent)

	snap.MACD = indicator.MACD(closes, indicator.DefaultMACDShort, indicator.DefaultMACDLong)
	snap.MACI = indicator.MACI(closes, indicator.DefaultMACDShort, indicator.DefaultMACDLong, indicator.DefaultMACDSignal)
	return snap, nil
}
