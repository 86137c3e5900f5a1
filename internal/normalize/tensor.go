package normalize

import (
	"fmt"

	"candle-featuresv1/internal/model"
)

// Tensor is a dense row-major [N, W, F] float tensor.
type Tensor struct {
	Shape [3]int
	Data  []float64
}

func newTensor(n, w int) Tensor {
	return Tensor{
		Shape: [3]int{n, w, model.FeatureWidth},
		Data:  make([]float64, n*w*model.FeatureWidth),
	}
}

// At returns element [n, w, f].
func (t Tensor) At(n, w, f int) float64 {
	return t.Data[(n*t.Shape[1]+w)*t.Shape[2]+f]
}

// Step returns the F values of sample n at step w. The slice aliases Data.
func (t Tensor) Step(n, w int) []float64 {
	off := (n*t.Shape[1] + w) * t.Shape[2]
	return t.Data[off : off+t.Shape[2]]
}

func (t Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.Shape)
}

// Window scales the most recent w rows with their own bounds and returns the
// [1, w, F] inference tensor and the bounds used to invert the prediction.
func Window(rows []model.FeatureRow, w int) (Tensor, Bounds, error) {
	b, err := Fit(rows, w)
	if err != nil {
		return Tensor{}, Bounds{}, err
	}
	t := newTensor(1, w)
	for i, r := range rows[len(rows)-w:] {
		scaled := b.Scale(r.Values)
		copy(t.Step(0, i), scaled[:])
	}
	return t, b, nil
}

// Dataset scales the whole table with one set of bounds and builds training
// samples: X[k] = rows[i-w:i] and Y[k] = rows[i+1] OHLC, for i in [w, n-1).
// Y skips row i itself; models trained on it predict two bars ahead of the
// window's last row.
func Dataset(rows []model.FeatureRow, w int) (X Tensor, Y [][4]float64, b Bounds, err error) {
	if w <= 0 || len(rows) < w+2 {
		return Tensor{}, nil, Bounds{}, fmt.Errorf("%w: have %d, need %d for window %d",
			ErrInsufficientRows, len(rows), w+2, w)
	}
	b = fit(rows)
	scaled := make([]Row, len(rows))
	for i, r := range rows {
		scaled[i] = b.Scale(r.Values)
	}

	n := len(rows) - 1 - w
	X = newTensor(n, w)
	Y = make([][4]float64, n)
	for k := 0; k < n; k++ {
		i := k + w
		for j := 0; j < w; j++ {
			copy(X.Step(k, j), scaled[i-w+j][:])
		}
		copy(Y[k][:], scaled[i+1][:4])
	}
	return X, Y, b, nil
}
