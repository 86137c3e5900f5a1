package features

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candle-featuresv1/internal/indicator"
	"candle-featuresv1/internal/model"
	"candle-featuresv1/internal/series"
)

func walk(seed int64, n int) series.Series {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]model.Bar, n)
	price := 250.0
	for i := range bars {
		open := price
		price = math.Max(1, price*(1+rng.NormFloat64()*0.01))
		bars[i] = model.Bar{
			Timestamp: 1_700_000_000_000 + int64(i)*14_400_000,
			Open:      open,
			High:      math.Max(open, price) * (1 + rng.Float64()*0.005),
			Low:       math.Min(open, price) * (1 - rng.Float64()*0.005),
			Close:     price,
			Volume:    rng.Float64() * 5000,
		}
	}
	return series.MustNew(bars)
}

func TestBuild_MatchesNaive(t *testing.T) {
	s := walk(1, 200)
	fast := Build(s)
	naive := BuildNaive(s)
	require.Equal(t, len(naive), len(fast))
	for i := range naive {
		require.Equal(t, naive[i], fast[i], "row %d", i)
	}
}

func TestBuild_FirstRowAfterLookback(t *testing.T) {
	s := walk(2, 100)
	rows := Build(s)

	// MACD(12,26) is the longest lookback: first row at bar index 25
	require.Len(t, rows, 100-25)
	first, _ := s.At(25)
	assert.Equal(t, first.Timestamp, rows[0].Timestamp)
	assert.Equal(t, 26, DefaultConfig().Lookback())
}

func TestBuild_RowLayout(t *testing.T) {
	s := walk(3, 60)
	rows := Build(s)
	require.NotEmpty(t, rows)

	last := rows[len(rows)-1]
	bar, _ := s.At(s.Len() - 1)
	closes := s.Closes()

	assert.Equal(t, bar.Open, last.Values[model.ColOpen])
	assert.Equal(t, bar.High, last.Values[model.ColHigh])
	assert.Equal(t, bar.Low, last.Values[model.ColLow])
	assert.Equal(t, bar.Close, last.Values[model.ColClose])
	assert.Equal(t, indicator.SMA(closes, 20).Or(-1), last.Values[model.ColSMA])
	assert.Equal(t, indicator.EMA(closes, 20).Or(-1), last.Values[model.ColEMA])
	assert.Equal(t, indicator.RSI(closes, 14).Or(-1), last.Values[model.ColRSI])
	assert.Equal(t, indicator.MACD(closes, 12, 26).Or(-1), last.Values[model.ColMACD])
	assert.Equal(t, indicator.ATR(s, 14).Or(-1), last.Values[model.ColATR])
	assert.Equal(t, indicator.OBV(s).Or(-1), last.Values[model.ColOBV])
}

func TestBuild_TimestampsAreFilteredPrefix(t *testing.T) {
	s := walk(4, 120)
	rows := Build(s)
	require.LessOrEqual(t, len(rows), s.Len())

	byTS := make(map[int64]bool, s.Len())
	for _, b := range s.Bars() {
		byTS[b.Timestamp] = true
	}
	for i, r := range rows {
		assert.True(t, byTS[r.Timestamp], "row %d timestamp not from input", i)
		if i > 0 {
			assert.Greater(t, r.Timestamp, rows[i-1].Timestamp)
		}
	}
}

func TestBuild_ShortSeriesHasNoRows(t *testing.T) {
	assert.Empty(t, Build(walk(5, 25)))
	assert.Empty(t, Build(series.Series{}))
	assert.Len(t, Build(walk(5, 26)), 1)
}

func TestBuild_NoLookAhead(t *testing.T) {
	s := walk(6, 80)
	full := Build(s)
	prefix, _ := s.Prefix(49)
	part := Build(prefix)
	require.NotEmpty(t, part)
	assert.Equal(t, full[:len(part)], part)
}

func TestConfig_AlternatePeriods(t *testing.T) {
	cfg := Config{SMAPeriod: 5, EMAPeriod: 5, RSIPeriod: 5, MACDShort: 3, MACDLong: 6, ATRPeriod: 5}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 6, cfg.Lookback())

	s := walk(7, 40)
	rows := cfg.Build(s)
	assert.Len(t, rows, 40-5) // MACD long=6 and RSI/ATR 5+1 both start at index 5
	assert.Equal(t, cfg.BuildNaive(s), rows)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	cfg := DefaultConfig()
	cfg.ATRPeriod = 0
	assert.Error(t, cfg.Validate())
}
