// Package features turns a bar series into the fixed-width feature table
// consumed by sequence models: OHLC plus SMA, EMA, RSI, MACD, ATR and OBV,
// each computed from bars up to and including the row's own bar.
package features

import (
	"fmt"

	"candle-featuresv1/internal/indicator"
	"candle-featuresv1/internal/model"
	"candle-featuresv1/internal/series"
)

// Config selects the indicator periods of a feature row.
type Config struct {
	SMAPeriod int `yaml:"sma_period" json:"sma_period" default:"20" validate:"gt=0"`
	EMAPeriod int `yaml:"ema_period" json:"ema_period" default:"20" validate:"gt=0"`
	RSIPeriod int `yaml:"rsi_period" json:"rsi_period" default:"14" validate:"gt=0"`
	MACDShort int `yaml:"macd_short" json:"macd_short" default:"12" validate:"gt=0"`
	MACDLong  int `yaml:"macd_long" json:"macd_long" default:"26" validate:"gt=0"`
	ATRPeriod int `yaml:"atr_period" json:"atr_period" default:"14" validate:"gt=0"`
}

// DefaultConfig returns SMA-20, EMA-20, RSI-14, MACD(12,26), ATR-14.
func DefaultConfig() Config {
	return Config{
		SMAPeriod: 20,
		EMAPeriod: 20,
		RSIPeriod: indicator.DefaultRSIPeriod,
		MACDShort: indicator.DefaultMACDShort,
		MACDLong:  indicator.DefaultMACDLong,
		ATRPeriod: indicator.DefaultATRPeriod,
	}
}

// Validate rejects non-positive periods.
func (c Config) Validate() error {
	for name, p := range map[string]int{
		"sma_period": c.SMAPeriod, "ema_period": c.EMAPeriod, "rsi_period": c.RSIPeriod,
		"macd_short": c.MACDShort, "macd_long": c.MACDLong, "atr_period": c.ATRPeriod,
	} {
		if p <= 0 {
			return fmt.Errorf("features: %s must be positive, got %d", name, p)
		}
	}
	return nil
}

// Indicators returns the streaming indicator configs behind a feature row,
// in column order.
func (c Config) Indicators() []indicator.IndicatorConfig {
	return []indicator.IndicatorConfig{
		{Type: indicator.TypeSMA, Period: c.SMAPeriod},
		{Type: indicator.TypeEMA, Period: c.EMAPeriod},
		{Type: indicator.TypeRSI, Period: c.RSIPeriod},
		{Type: indicator.TypeMACD, Short: c.MACDShort, Long: c.MACDLong},
		{Type: indicator.TypeATR, Period: c.ATRPeriod},
		{Type: indicator.TypeOBV},
	}
}

// Lookback is the number of bars before the first row can be emitted.
func (c Config) Lookback() int {
	longest := 0
	for _, ic := range c.Indicators() {
		if lb := ic.Lookback(); lb > longest {
			longest = lb
		}
	}
	return longest
}

// Build computes the feature table for s with the default config.
func Build(s series.Series) []model.FeatureRow { return DefaultConfig().Build(s) }

// BuildNaive computes the feature table for s with the default config by
// recomputing every indicator over each prefix.
func BuildNaive(s series.Series) []model.FeatureRow { return DefaultConfig().BuildNaive(s) }

// Build walks s once, feeding each bar to streaming indicator states, and
// emits a row for every bar where all indicators are defined.
// Rows are in chronological order.
func (c Config) Build(s series.Series) []model.FeatureRow {
	sma := indicator.NewSMAState(c.SMAPeriod)
	ema := indicator.NewEMAState(c.EMAPeriod)
	rsi := indicator.NewRSIState(c.RSIPeriod)
	macd := indicator.NewMACDState(c.MACDShort, c.MACDLong)
	atr := indicator.NewATRState(c.ATRPeriod)
	obv := indicator.NewOBVState()
	states := []indicator.Indicator{sma, ema, rsi, macd, atr, obv}

	bars := s.Bars()
	rows := make([]model.FeatureRow, 0, max(0, len(bars)-c.Lookback()+1))
	vals := make([]indicator.Value, len(states))
	for _, b := range bars {
		for i, st := range states {
			st.Update(b)
			vals[i] = st.Value()
		}
		if row, ok := makeRow(b, vals); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// BuildNaive is the reference form of Build: each row recomputes every
// indicator from scratch over bars 0..i. Quadratic in the series length.
func (c Config) BuildNaive(s series.Series) []model.FeatureRow {
	var rows []model.FeatureRow
	vals := make([]indicator.Value, 6)
	for i := 0; i < s.Len(); i++ {
		prefix, _ := s.Prefix(i)
		closes := prefix.Closes()
		vals[0] = indicator.SMA(closes, c.SMAPeriod)
		vals[1] = indicator.EMA(closes, c.EMAPeriod)
		vals[2] = indicator.RSI(closes, c.RSIPeriod)
		vals[3] = indicator.MACD(closes, c.MACDShort, c.MACDLong)
		vals[4] = indicator.ATR(prefix, c.ATRPeriod)
		vals[5] = indicator.OBV(prefix)

		b, _ := s.At(i)
		if row, ok := makeRow(b, vals); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// makeRow lays out [open, high, low, close, sma, ema, rsi, macd, atr, obv].
// ok is false when any indicator is undefined.
func makeRow(b model.Bar, vals []indicator.Value) (model.FeatureRow, bool) {
	row := model.FeatureRow{Timestamp: b.Timestamp}
	row.Values[model.ColOpen] = b.Open
	row.Values[model.ColHigh] = b.High
	row.Values[model.ColLow] = b.Low
	row.Values[model.ColClose] = b.Close
	for i, v := range vals {
		f, ok := v.Float()
		if !ok {
			return model.FeatureRow{}, false
		}
		row.Values[model.ColSMA+i] = f
	}
	return row, true
}
