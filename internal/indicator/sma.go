package indicator

import (
	"strconv"

	"candle-featuresv1/internal/model"
)

// SMA is the arithmetic mean of the last period prices.
func SMA(prices []float64, period int) Value {
	if period <= 0 || len(prices) < period {
		return Undefined()
	}
	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return Defined(sum / float64(period))
}

// SMAState is the streaming form of SMA over bar closes.
// The window is summed in order on every update so the result matches SMA
// bit for bit; a running sum would drift in the last ulp.
type SMAState struct {
	period  int
	closes  *window[float64]
	count   int
	current Value
}

// NewSMAState creates a streaming SMA with the given period.
func NewSMAState(period int) *SMAState {
	return &SMAState{period: period, closes: newWindow[float64](period)}
}

func (s *SMAState) Name() string { return "SMA_" + strconv.Itoa(s.period) }

func (s *SMAState) Update(bar model.Bar) {
	s.closes.push(bar.Close)
	s.count++
	s.current = SMA(s.closes.values(), s.period)
}

func (s *SMAState) Value() Value { return s.current }
func (s *SMAState) Ready() bool  { return s.current.IsDefined() }

// Peek computes what Value() would be with an additional bar without mutating state.
func (s *SMAState) Peek(bar model.Bar) Value {
	return SMA(s.closes.withNext(bar.Close), s.period)
}

// Reset clears the SMA state for reuse.
func (s *SMAState) Reset() {
	s.closes.reset()
	s.count = 0
	s.current = Undefined()
}

// Snapshot serializes the SMA state for checkpoint persistence.
func (s *SMAState) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{Type: TypeSMA, Period: s.period, Count: s.count, Closes: s.closes.snapshot()}
}

// RestoreFromSnapshot restores SMA state from a checkpoint.
func (s *SMAState) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expect(TypeSMA, s.period); err != nil {
		return err
	}
	s.count = snap.Count
	s.closes.restore(snap.Closes)
	s.current = SMA(s.closes.values(), s.period)
	return nil
}
