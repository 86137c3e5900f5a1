// Package normalize min-max scales feature tables into model tensors and
// inverts model outputs back to price scale.
package normalize

import (
	"errors"
	"fmt"

	"candle-featuresv1/internal/model"
)

// Epsilon keeps constant columns from dividing by zero.
const Epsilon = 1e-8

// ErrInsufficientRows is returned when a table is shorter than the window.
var ErrInsufficientRows = errors.New("normalize: insufficient feature rows")

// Row is the numeric part of a model.FeatureRow.
type Row = [model.FeatureWidth]float64

// Bounds holds per-column min and max over a window of feature rows.
type Bounds struct {
	Min Row `json:"min"`
	Max Row `json:"max"`
}

// Fit computes bounds over the most recent w rows.
func Fit(rows []model.FeatureRow, w int) (Bounds, error) {
	if w <= 0 || len(rows) < w {
		return Bounds{}, fmt.Errorf("%w: have %d, window %d", ErrInsufficientRows, len(rows), w)
	}
	return fit(rows[len(rows)-w:]), nil
}

func fit(rows []model.FeatureRow) Bounds {
	b := Bounds{Min: rows[0].Values, Max: rows[0].Values}
	for _, r := range rows[1:] {
		for c, v := range r.Values {
			if v < b.Min[c] {
				b.Min[c] = v
			}
			if v > b.Max[c] {
				b.Max[c] = v
			}
		}
	}
	return b
}

func (b Bounds) span(c int) float64 { return b.Max[c] - b.Min[c] + Epsilon }

// Scale maps each value to (v-min)/(max-min+ε).
func (b Bounds) Scale(row Row) Row {
	var out Row
	for c, v := range row {
		out[c] = (v - b.Min[c]) / b.span(c)
	}
	return out
}

// Inverse maps every scaled column back: scaled*(max-min+ε)+min.
func (b Bounds) Inverse(scaled Row) Row {
	var out Row
	for c, v := range scaled {
		out[c] = v*b.span(c) + b.Min[c]
	}
	return out
}

// InverseOHLC inverts a predicted [open, high, low, close] to price scale.
func (b Bounds) InverseOHLC(scaled [4]float64) [4]float64 {
	var out [4]float64
	for c, v := range scaled {
		out[c] = v*b.span(c) + b.Min[c]
	}
	return out
}
