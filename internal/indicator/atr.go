package indicator

import (
	"math"
	"strconv"

	"candle-featuresv1/internal/model"
	"candle-featuresv1/internal/series"
)

// ATR is the mean of the last period true ranges. A true range needs the
// previous close, so period+1 bars are required.
func ATR(s series.Series, period int) Value {
	if period <= 0 {
		return Undefined()
	}
	tail, ok := s.Last(period + 1)
	if !ok {
		return Undefined()
	}
	return atrOf(tail.Bars(), period)
}

// atrOf averages the true ranges of the last period adjacent pairs in bars.
func atrOf(bars []model.Bar, period int) Value {
	if period <= 0 || len(bars) < period+1 {
		return Undefined()
	}
	bars = bars[len(bars)-period-1:]
	sum := 0.0
	for i := 1; i < len(bars); i++ {
		sum += TrueRange(bars[i], bars[i-1].Close)
	}
	return Defined(sum / float64(period))
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(b model.Bar, prevClose float64) float64 {
	return math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
}

// ATRState is the streaming form of ATR.
type ATRState struct {
	period  int
	bars    *window[model.Bar]
	count   int
	current Value
}

// NewATRState creates a streaming ATR with the given period (typically 14).
func NewATRState(period int) *ATRState {
	return &ATRState{period: period, bars: newWindow[model.Bar](period + 1)}
}

func (a *ATRState) Name() string { return "ATR_" + strconv.Itoa(a.period) }

func (a *ATRState) Update(bar model.Bar) {
	a.bars.push(bar)
	a.count++
	a.current = atrOf(a.bars.values(), a.period)
}

func (a *ATRState) Value() Value { return a.current }
func (a *ATRState) Ready() bool  { return a.current.IsDefined() }

// Peek computes what ATR would be with an additional bar without mutating state.
func (a *ATRState) Peek(bar model.Bar) Value {
	return atrOf(a.bars.withNext(bar), a.period)
}

// Reset clears the ATR state for reuse.
func (a *ATRState) Reset() {
	a.bars.reset()
	a.count = 0
	a.current = Undefined()
}

// Snapshot serializes the ATR state for checkpoint persistence.
func (a *ATRState) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{Type: TypeATR, Period: a.period, Count: a.count, Bars: a.bars.snapshot()}
}

// RestoreFromSnapshot restores ATR state from a checkpoint.
func (a *ATRState) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expect(TypeATR, a.period); err != nil {
		return err
	}
	a.count = snap.Count
	a.bars.restore(snap.Bars)
	a.current = atrOf(a.bars.values(), a.period)
	return nil
}
