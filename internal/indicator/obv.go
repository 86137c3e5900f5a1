package indicator

import (
	"candle-featuresv1/internal/model"
	"candle-featuresv1/internal/series"
)

// OBV is the on-balance volume over every bar in s: starting at 0, add the
// bar volume when the close rises, subtract it when the close falls.
// An empty series is undefined; a single bar gives 0.
func OBV(s series.Series) Value {
	if s.Len() == 0 {
		return Undefined()
	}
	var st OBVState
	for _, b := range s.Bars() {
		st.Update(b)
	}
	return st.Value()
}

// OBVState is the streaming form of OBV. The zero value is ready to use.
type OBVState struct {
	count     int
	prevClose float64
	obv       float64
}

// NewOBVState creates a streaming OBV.
func NewOBVState() *OBVState { return &OBVState{} }

func (o *OBVState) Name() string { return "OBV" }

func (o *OBVState) Update(bar model.Bar) {
	o.obv = o.next(bar)
	o.prevClose = bar.Close
	o.count++
}

func (o *OBVState) next(bar model.Bar) float64 {
	if o.count == 0 {
		return 0
	}
	switch {
	case bar.Close > o.prevClose:
		return o.obv + bar.Volume
	case bar.Close < o.prevClose:
		return o.obv - bar.Volume
	}
	return o.obv
}

func (o *OBVState) Value() Value {
	if o.count == 0 {
		return Undefined()
	}
	return Defined(o.obv)
}

func (o *OBVState) Ready() bool { return o.count > 0 }

// Peek computes what OBV would be with an additional bar without mutating state.
func (o *OBVState) Peek(bar model.Bar) Value { return Defined(o.next(bar)) }

// Reset clears the OBV state for reuse.
func (o *OBVState) Reset() { *o = OBVState{} }

// Snapshot serializes the OBV state for checkpoint persistence.
func (o *OBVState) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{Type: TypeOBV, Count: o.count, PrevClose: o.prevClose, OBV: o.obv}
}

// RestoreFromSnapshot restores OBV state from a checkpoint.
func (o *OBVState) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expect(TypeOBV, 0); err != nil {
		return err
	}
	o.count = snap.Count
	o.prevClose = snap.PrevClose
	o.obv = snap.OBV
	return nil
}
