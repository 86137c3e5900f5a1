package indicator

import "candle-featuresv1/internal/series"

// PriceVolume is one VWAP input pair.
type PriceVolume struct {
	Price  float64
	Volume float64
}

// PriceVolumes pairs every close in s with its volume.
func PriceVolumes(s series.Series) []PriceVolume {
	bars := s.Bars()
	out := make([]PriceVolume, len(bars))
	for i, b := range bars {
		out[i] = PriceVolume{Price: b.Close, Volume: b.Volume}
	}
	return out
}

// VWAP is Σ(price·volume)/Σvolume over every pair given; the caller picks the
// window by how many pairs it passes. Undefined when total volume is zero.
func VWAP(pairs []PriceVolume) Value {
	if len(pairs) == 1 {
		// p*v/v can round away from p.
		if pairs[0].Volume <= 0 {
			return Undefined()
		}
		return Defined(pairs[0].Price)
	}
	var pv, vol float64
	for _, p := range pairs {
		pv += p.Price * p.Volume
		vol += p.Volume
	}
	if vol <= 0 {
		return Undefined()
	}
	return Defined(pv / vol)
}
