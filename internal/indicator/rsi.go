package indicator

import (
	"strconv"

	"candle-featuresv1/internal/model"
)

// RSI is the relative strength index over the last period one-bar diffs.
// Gains and losses are plain sums (no Wilder smoothing). With no losses in
// the window the RSI is 100.
func RSI(prices []float64, period int) Value {
	if period <= 0 || len(prices) < period+1 {
		return Undefined()
	}
	var gains, losses float64
	n := len(prices)
	for i := n - period; i < n; i++ {
		diff := prices[i] - prices[i-1]
		if diff > 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	if losses == 0 {
		return Defined(100)
	}
	rs := gains / losses
	return Defined(100 - 100/(1+rs))
}

// RSIState is the streaming form of RSI over bar closes.
type RSIState struct {
	period  int
	closes  *window[float64]
	count   int
	current Value
}

// NewRSIState creates a streaming RSI with the given period (typically 14).
func NewRSIState(period int) *RSIState {
	return &RSIState{period: period, closes: newWindow[float64](period + 1)}
}

func (r *RSIState) Name() string { return "RSI_" + strconv.Itoa(r.period) }

func (r *RSIState) Update(bar model.Bar) {
	r.closes.push(bar.Close)
	r.count++
	r.current = RSI(r.closes.values(), r.period)
}

func (r *RSIState) Value() Value { return r.current }
func (r *RSIState) Ready() bool  { return r.current.IsDefined() }

// Peek computes what RSI would be with an additional bar without mutating state.
func (r *RSIState) Peek(bar model.Bar) Value {
	return RSI(r.closes.withNext(bar.Close), r.period)
}

// Reset clears the RSI state for reuse.
func (r *RSIState) Reset() {
	r.closes.reset()
	r.count = 0
	r.current = Undefined()
}

// Snapshot serializes the RSI state for checkpoint persistence.
func (r *RSIState) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{Type: TypeRSI, Period: r.period, Count: r.count, Closes: r.closes.snapshot()}
}

// RestoreFromSnapshot restores RSI state from a checkpoint.
func (r *RSIState) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expect(TypeRSI, r.period); err != nil {
		return err
	}
	r.count = snap.Count
	r.closes.restore(snap.Closes)
	r.current = RSI(r.closes.values(), r.period)
	return nil
}
