package indicator

import (
	"strconv"

	"candle-featuresv1/internal/model"
)

// EMA is the exponential moving average of the last period prices.
//
// The seed is the price exactly period elements from the end (not a simple
// average), then ema = price*k + ema*(1-k) with k = 2/(period+1) is applied
// forward over the remaining period-1 prices. Because of that seed, the EMA
// of a prefix depends only on its last period prices.
func EMA(prices []float64, period int) Value {
	if period <= 0 || len(prices) < period {
		return Undefined()
	}
	k := 2.0 / float64(period+1)
	tail := prices[len(prices)-period:]
	ema := tail[0]
	for _, p := range tail[1:] {
		ema = p*k + ema*(1-k)
	}
	return Defined(ema)
}

// EMAState is the streaming form of EMA over bar closes. It keeps the last
// period closes and re-runs the seeded recurrence, O(period) per bar.
type EMAState struct {
	period  int
	closes  *window[float64]
	count   int
	current Value
}

// NewEMAState creates a streaming EMA with the given period.
func NewEMAState(period int) *EMAState {
	return &EMAState{period: period, closes: newWindow[float64](period)}
}

func (e *EMAState) Name() string { return "EMA_" + strconv.Itoa(e.period) }

func (e *EMAState) Update(bar model.Bar) {
	e.closes.push(bar.Close)
	e.count++
	e.current = EMA(e.closes.values(), e.period)
}

func (e *EMAState) Value() Value { return e.current }
func (e *EMAState) Ready() bool  { return e.current.IsDefined() }

// Peek computes what Value() would be with an additional bar without mutating state.
func (e *EMAState) Peek(bar model.Bar) Value {
	return EMA(e.closes.withNext(bar.Close), e.period)
}

// Reset clears the EMA state for reuse.
func (e *EMAState) Reset() {
	e.closes.reset()
	e.count = 0
	e.current = Undefined()
}

// Snapshot serializes the EMA state for checkpoint persistence.
func (e *EMAState) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{Type: TypeEMA, Period: e.period, Count: e.count, Closes: e.closes.snapshot()}
}

// RestoreFromSnapshot restores EMA state from a checkpoint.
func (e *EMAState) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expect(TypeEMA, e.period); err != nil {
		return err
	}
	e.count = snap.Count
	e.closes.restore(snap.Closes)
	e.current = EMA(e.closes.values(), e.period)
	return nil
}
