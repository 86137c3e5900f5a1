package model

// Feature row column positions. Downstream consumers index rows by position,
// so the order is fixed.
const (
	ColOpen = iota
	ColHigh
	ColLow
	ColClose
	ColSMA
	ColEMA
	ColRSI
	ColMACD
	ColATR
	ColOBV

	FeatureWidth
)

// FeatureColumns names the columns of a FeatureRow in order.
var FeatureColumns = [FeatureWidth]string{
	"open", "high", "low", "close", "sma", "ema", "rsi", "macd", "atr", "obv",
}

// FeatureRow is one bar's OHLC values plus its indicator vector as of that bar.
type FeatureRow struct {
	Timestamp int64
	Values    [FeatureWidth]float64
}

// Slice returns a copy of the row values as a slice.
func (r FeatureRow) Slice() []float64 {
	out := make([]float64, FeatureWidth)
	copy(out, r.Values[:])
	return out
}

// FeatureRecord is the flat, tagged form of a FeatureRow used for
// persistence and columnar export.
type FeatureRecord struct {
	Symbol    string  `json:"symbol" parquet:"symbol,dict"`
	Interval  string  `json:"interval" parquet:"interval,dict"`
	Timestamp int64   `json:"timestamp" parquet:"timestamp"`
	Open      float64 `json:"open" parquet:"open"`
	High      float64 `json:"high" parquet:"high"`
	Low       float64 `json:"low" parquet:"low"`
	Close     float64 `json:"close" parquet:"close"`
	SMA       float64 `json:"sma" parquet:"sma"`
	EMA       float64 `json:"ema" parquet:"ema"`
	RSI       float64 `json:"rsi" parquet:"rsi"`
	MACD      float64 `json:"macd" parquet:"macd"`
	ATR       float64 `json:"atr" parquet:"atr"`
	OBV       float64 `json:"obv" parquet:"obv"`
}

// Record tags a row with its market.
func (r FeatureRow) Record(symbol, interval string) FeatureRecord {
	v := r.Values
	return FeatureRecord{
		Symbol: symbol, Interval: interval, Timestamp: r.Timestamp,
		Open: v[ColOpen], High: v[ColHigh], Low: v[ColLow], Close: v[ColClose],
		SMA: v[ColSMA], EMA: v[ColEMA], RSI: v[ColRSI], MACD: v[ColMACD],
		ATR: v[ColATR], OBV: v[ColOBV],
	}
}

// Row converts a record back into a FeatureRow.
func (fr FeatureRecord) Row() FeatureRow {
	return FeatureRow{
		Timestamp: fr.Timestamp,
		Values: [FeatureWidth]float64{
			fr.Open, fr.High, fr.Low, fr.Close, fr.SMA, fr.EMA, fr.RSI, fr.MACD, fr.ATR, fr.OBV,
		},
	}
}
