package normalize

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candle-featuresv1/internal/model"
)

func table(seed int64, n int) []model.FeatureRow {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]model.FeatureRow, n)
	for i := range rows {
		rows[i].Timestamp = int64(i + 1)
		for c := range rows[i].Values {
			rows[i].Values[c] = rng.Float64()*1000 - 200
		}
	}
	return rows
}

func TestFit_UsesMostRecentWindow(t *testing.T) {
	rows := table(1, 5)
	rows[0].Values[model.ColClose] = 1e9 // outside the window
	b, err := Fit(rows, 3)
	require.NoError(t, err)

	for c := 0; c < model.FeatureWidth; c++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, r := range rows[2:] {
			lo = math.Min(lo, r.Values[c])
			hi = math.Max(hi, r.Values[c])
		}
		assert.Equal(t, lo, b.Min[c], "min col %d", c)
		assert.Equal(t, hi, b.Max[c], "max col %d", c)
	}
}

func TestFit_Insufficient(t *testing.T) {
	_, err := Fit(table(2, 59), 60)
	assert.True(t, errors.Is(err, ErrInsufficientRows))
	_, err = Fit(table(2, 10), 0)
	assert.ErrorIs(t, err, ErrInsufficientRows)
}

func TestScale_RangeAndRoundTrip(t *testing.T) {
	rows := table(3, 80)
	b, err := Fit(rows, 60)
	require.NoError(t, err)

	for _, r := range rows[20:] {
		scaled := b.Scale(r.Values)
		for c, v := range scaled {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.Less(t, v, 1.0, "col %d", c)
		}
		back := b.Inverse(scaled)
		for c := range back {
			assert.InDelta(t, r.Values[c], back[c], 1e-6, "col %d", c)
		}
		ohlc := b.InverseOHLC([4]float64{scaled[0], scaled[1], scaled[2], scaled[3]})
		for c := range ohlc {
			assert.InDelta(t, r.Values[c], ohlc[c], 1e-6, "ohlc col %d", c)
		}
	}
}

func TestScale_ConstantColumn(t *testing.T) {
	rows := table(4, 10)
	for i := range rows {
		rows[i].Values[model.ColRSI] = 100
	}
	b, err := Fit(rows, 10)
	require.NoError(t, err)
	scaled := b.Scale(rows[3].Values)
	assert.Equal(t, 0.0, scaled[model.ColRSI])
	assert.False(t, math.IsNaN(scaled[model.ColRSI]))
}

func TestWindow_Shape(t *testing.T) {
	rows := table(5, 100)
	x, b, err := Window(rows, 60)
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, 60, model.FeatureWidth}, x.Shape)
	assert.Len(t, x.Data, 60*model.FeatureWidth)

	want := b.Scale(rows[40].Values)
	assert.Equal(t, want[:], x.Step(0, 0))
	assert.Equal(t, b.Scale(rows[99].Values)[model.ColOBV], x.At(0, 59, model.ColOBV))

	_, _, err = Window(rows[:59], 60)
	assert.ErrorIs(t, err, ErrInsufficientRows)
}

func TestDataset_Sequences(t *testing.T) {
	rows := table(6, 20)
	x, y, b, err := Dataset(rows, 5)
	require.NoError(t, err)

	// i in [5, 19) → 14 samples
	assert.Equal(t, [3]int{14, 5, model.FeatureWidth}, x.Shape)
	require.Len(t, y, 14)

	full, err := Fit(rows, len(rows))
	require.NoError(t, err)
	assert.Equal(t, full, b)

	for k := 0; k < 14; k++ {
		i := k + 5
		first := b.Scale(rows[i-5].Values)
		last := b.Scale(rows[i-1].Values)
		assert.Equal(t, first[:], x.Step(k, 0))
		assert.Equal(t, last[:], x.Step(k, 4))
		target := b.Scale(rows[i+1].Values)
		assert.Equal(t, [4]float64{target[0], target[1], target[2], target[3]}, y[k])
	}
}

func TestDataset_Insufficient(t *testing.T) {
	_, _, _, err := Dataset(table(7, 61), 60)
	assert.ErrorIs(t, err, ErrInsufficientRows)

	x, y, _, err := Dataset(table(7, 62), 60)
	require.NoError(t, err)
	assert.Equal(t, 1, x.Shape[0])
	assert.Len(t, y, 1)
}
