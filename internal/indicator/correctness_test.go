package indicator

import (
	"math"
	"math/rand"
	"testing"

	"candle-featuresv1/internal/model"
	"candle-featuresv1/internal/series"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func assertClose(t *testing.T, label string, got Value, want, tol float64) {
	t.Helper()
	v, ok := got.Float()
	if !ok {
		t.Errorf("%s: got undefined, want %.6f", label, want)
		return
	}
	if math.Abs(v-want) > tol {
		t.Errorf("%s: got %.9f, want %.9f (tol=%g, diff=%g)", label, v, want, tol, math.Abs(v-want))
	}
}

func assertUndefined(t *testing.T, label string, got Value) {
	t.Helper()
	if got.IsDefined() {
		t.Errorf("%s: expected undefined, got %v", label, got)
	}
}

func barsFromCloses(closes []float64, volume float64) []model.Bar {
	out := make([]model.Bar, len(closes))
	for i, c := range closes {
		out[i] = model.Bar{
			Timestamp: int64(i+1) * 60_000,
			Open:      c, High: c + 0.5, Low: math.Max(0, c-0.5), Close: c,
			Volume: volume,
		}
	}
	return out
}

// randomWalk builds n valid bars from a seeded generator.
func randomWalk(seed int64, n int) []model.Bar {
	rng := rand.New(rand.NewSource(seed))
	out := make([]model.Bar, n)
	price := 100.0
	for i := range out {
		open := price
		price = math.Max(1, price+rng.NormFloat64()*2)
		hi := math.Max(open, price) + rng.Float64()
		lo := math.Max(0, math.Min(open, price)-rng.Float64())
		out[i] = model.Bar{
			Timestamp: int64(i+1) * 3_600_000,
			Open:      open, High: hi, Low: lo, Close: price,
			Volume: math.Floor(rng.Float64() * 1000),
		}
	}
	return out
}

func closesOf(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// ────────────────────────────────────────────────────────────
// SMA / EMA
// ────────────────────────────────────────────────────────────

func TestSMA_LastPeriod(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6, 7}
	assertClose(t, "SMA(3)", SMA(prices, 3), 6.0, 0)
	assertUndefined(t, "SMA(10)", SMA(prices, 10))
	assertUndefined(t, "SMA(0)", SMA(prices, 0))
	assertClose(t, "SMA(7)", SMA(prices, 7), 4.0, 0)
}

func TestEMA_SeedFromPosition(t *testing.T) {
	// k = 0.5, seed = 3, then 4 → 3.5, then 5 → 4.25
	assertClose(t, "EMA(3)", EMA([]float64{1, 2, 3, 4, 5}, 3), 4.25, 1e-12)
	// period 1 is the last price
	assertClose(t, "EMA(1)", EMA([]float64{1, 2, 9}, 1), 9, 0)
	// a full-length window seeds from the first element
	assertClose(t, "EMA(2) seed", EMA([]float64{10, 20}, 2), 20*(2.0/3)+10*(1.0/3), 1e-12)
}

func TestInsufficientBelowPeriod(t *testing.T) {
	prices := closesOf(randomWalk(1, 60))
	for p := 1; p <= 40; p++ {
		short := prices[:p-1]
		assertUndefined(t, "SMA short", SMA(short, p))
		assertUndefined(t, "EMA short", EMA(short, p))
		assertUndefined(t, "MACD short", MACD(short, 1, p))

		enough := prices[:p]
		for name, v := range map[string]Value{
			"SMA":  SMA(enough, p),
			"EMA":  EMA(enough, p),
			"MACD": MACD(enough, 1, p),
		} {
			f, ok := v.Float()
			if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
				t.Errorf("%s(period=%d, len=%d) = %v, want finite", name, p, len(enough), v)
			}
		}
	}
}

// ────────────────────────────────────────────────────────────
// RSI
// ────────────────────────────────────────────────────────────

func TestRSI_Bounds(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		prices := closesOf(randomWalk(seed, 80))
		for n := 15; n <= len(prices); n++ {
			v, ok := RSI(prices[:n], 14).Float()
			if !ok {
				t.Fatalf("seed %d len %d: RSI undefined", seed, n)
			}
			if v < 0 || v > 100 {
				t.Fatalf("seed %d len %d: RSI %.4f out of [0,100]", seed, n, v)
			}
		}
	}
}

func TestRSI_EdgeCases(t *testing.T) {
	rising := []float64{1, 2, 2, 3, 4}
	assertClose(t, "no losses", RSI(rising, 4), 100, 0)

	falling := []float64{5, 4, 3, 2, 1}
	assertClose(t, "no gains", RSI(falling, 4), 0, 0)

	flat := []float64{3, 3, 3}
	assertClose(t, "flat", RSI(flat, 2), 100, 0)

	// gains 2+1 = 3, losses 1 → rs 3 → 75
	assertClose(t, "mixed", RSI([]float64{10, 12, 11, 12}, 3), 75, 1e-12)

	assertUndefined(t, "needs period+1", RSI([]float64{1, 2, 3}, 3))
}

// ────────────────────────────────────────────────────────────
// VWAP
// ────────────────────────────────────────────────────────────

func TestVWAP(t *testing.T) {
	assertClose(t, "two pairs", VWAP([]PriceVolume{{10, 2}, {20, 3}}), 16.0, 1e-12)
	assertUndefined(t, "empty", VWAP(nil))
	assertUndefined(t, "zero volume", VWAP([]PriceVolume{{10, 0}, {20, 0}}))
	assertUndefined(t, "single zero volume", VWAP([]PriceVolume{{10, 0}}))
}

func TestVWAP_SinglePairIsPrice(t *testing.T) {
	for _, pv := range []PriceVolume{{0.1, 3}, {12345.678, 0.003}, {1e-7, 1e9}, {42, 1}} {
		got, ok := VWAP([]PriceVolume{pv}).Float()
		if !ok || got != pv.Price {
			t.Errorf("VWAP(%v) = %v, want exactly %v", pv, got, pv.Price)
		}
	}
}

func TestVWAP_FromSeries(t *testing.T) {
	s := series.MustNew(barsFromCloses([]float64{10, 20}, 5))
	assertClose(t, "series", VWAP(PriceVolumes(s)), 15, 1e-12)
}

// ────────────────────────────────────────────────────────────
// ATR
// ────────────────────────────────────────────────────────────

func TestATR_HandCalculated(t *testing.T) {
	bars := []model.Bar{
		{Timestamp: 1, Open: 10, High: 11, Low: 9, Close: 10},
		{Timestamp: 2, Open: 10, High: 13, Low: 10, Close: 12}, // TR = max(3, 3, 0) = 3
		{Timestamp: 3, Open: 12, High: 12, Low: 8, Close: 9},   // TR = max(4, 0, 4) = 4
		{Timestamp: 4, Open: 9, High: 10, Low: 9, Close: 10},   // TR = max(1, 1, 0) = 1
	}
	s := series.MustNew(bars)
	assertClose(t, "ATR(3)", ATR(s, 3), (3+4+1)/3.0, 1e-12)
	assertClose(t, "ATR(2) uses last two", ATR(s, 2), (4+1)/2.0, 1e-12)
	assertUndefined(t, "ATR(4) needs 5 bars", ATR(s, 4))
	assertUndefined(t, "ATR(0)", ATR(s, 0))
}

func TestATR_NonNegative(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		s := series.MustNew(randomWalk(seed, 50))
		v, ok := ATR(s, DefaultATRPeriod).Float()
		if !ok || v < 0 {
			t.Errorf("seed %d: ATR = %v ok=%v", seed, v, ok)
		}
	}
}

// ────────────────────────────────────────────────────────────
// OBV
// ────────────────────────────────────────────────────────────

func TestOBV_Scenario(t *testing.T) {
	s := series.MustNew(barsFromCloses([]float64{10, 12, 11, 13}, 100))
	assertClose(t, "OBV", OBV(s), 100, 0)
}

func TestOBV_StrictlyIncreasing(t *testing.T) {
	const v = 7.5
	for n := 1; n <= 30; n++ {
		closes := make([]float64, n)
		for i := range closes {
			closes[i] = float64(i + 1)
		}
		s := series.MustNew(barsFromCloses(closes, v))
		assertClose(t, "OBV increasing", OBV(s), float64(n-1)*v, 0)
	}
}

func TestOBV_EmptyAndNegative(t *testing.T) {
	assertUndefined(t, "empty", OBV(series.Series{}))
	s := series.MustNew(barsFromCloses([]float64{5, 4, 3}, 10))
	assertClose(t, "falling", OBV(s), -20, 0)
}

// ────────────────────────────────────────────────────────────
// MACD / MACI
// ────────────────────────────────────────────────────────────

func TestMACD_IsEMADifference(t *testing.T) {
	prices := closesOf(randomWalk(4, 40))
	s, _ := EMA(prices, 12).Float()
	l, _ := EMA(prices, 26).Float()
	got, ok := MACD(prices, DefaultMACDShort, DefaultMACDLong).Float()
	if !ok || got != s-l {
		t.Errorf("MACD = %v, want %v", got, s-l)
	}
	assertUndefined(t, "MACD short input", MACD(prices[:25], 12, 26))
}

func TestMACD_NegativeIsDefined(t *testing.T) {
	falling := make([]float64, 30)
	for i := range falling {
		falling[i] = float64(100 - i*i)
	}
	v, ok := MACD(falling, 12, 26).Float()
	if !ok || v >= 0 {
		t.Errorf("falling MACD = %v ok=%v, want defined negative", v, ok)
	}
}

func TestMACI_HandCalculated(t *testing.T) {
	// short=2 long=3 signal=2 over [1,2,4,7,11]:
	// line = [MACD([1,2,4,7]), MACD([1,2,4,7,11])] = [1, 17/12]
	// signal = 17/12*2/3 + 1/3 = 23/18, MACI = 17/12 - 23/18 = 5/36
	prices := []float64{1, 2, 4, 7, 11}
	assertClose(t, "MACI", MACI(prices, 2, 3, 2), 5.0/36, 1e-12)
	assertUndefined(t, "MACI needs long+signal", MACI(prices[:4], 2, 3, 2))
}

func TestMACI_Defaults(t *testing.T) {
	prices := closesOf(randomWalk(5, 60))
	assertUndefined(t, "34 prices", MACI(prices[:34], 12, 26, 9))
	if !MACI(prices[:35], 12, 26, 9).IsDefined() {
		t.Error("MACI with 35 prices should be defined")
	}
}

// ────────────────────────────────────────────────────────────
// Value
// ────────────────────────────────────────────────────────────

func TestValue_NeverSentinel(t *testing.T) {
	if Defined(-1).IsDefined() != true {
		t.Error("-1 must be a valid defined value")
	}
	if (Value{}).IsDefined() {
		t.Error("zero Value must be undefined")
	}
	if Defined(math.NaN()).IsDefined() || Defined(math.Inf(-1)).IsDefined() {
		t.Error("NaN/Inf must not be defined")
	}
	if got := Undefined().Format(2); got != "N/A" {
		t.Errorf("Format = %q", got)
	}
	if got := Defined(1.234).Format(2); got != "1.23" {
		t.Errorf("Format = %q", got)
	}
	if Undefined().Or(-5) != -5 {
		t.Error("Or fallback")
	}
}

func TestValue_JSON(t *testing.T) {
	b, _ := Undefined().MarshalJSON()
	if string(b) != "null" {
		t.Errorf("undefined JSON = %s", b)
	}
	var v Value
	if err := v.UnmarshalJSON([]byte("-3.5")); err != nil || v != Defined(-3.5) {
		t.Errorf("unmarshal = %v err=%v", v, err)
	}
	if err := v.UnmarshalJSON([]byte("null")); err != nil || v.IsDefined() {
		t.Errorf("unmarshal null = %v err=%v", v, err)
	}
}
