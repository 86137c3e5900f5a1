package model

import (
	"errors"
	"math"
	"testing"
)

func TestBar_Validate(t *testing.T) {
	cases := []struct {
		name string
		bar  Bar
		ok   bool
	}{
		{"valid", Bar{Timestamp: 1, Open: 10, High: 12, Low: 9, Close: 11, Volume: 5}, true},
		{"flat", Bar{Timestamp: 1, Open: 10, High: 10, Low: 10, Close: 10}, true},
		{"low above open", Bar{Timestamp: 1, Open: 10, High: 12, Low: 10.5, Close: 11}, false},
		{"high below close", Bar{Timestamp: 1, Open: 10, High: 10.5, Low: 9, Close: 11}, false},
		{"negative volume", Bar{Timestamp: 1, Open: 10, High: 12, Low: 9, Close: 11, Volume: -1}, false},
		{"nan close", Bar{Timestamp: 1, Open: 10, High: 12, Low: 9, Close: math.NaN()}, false},
		{"inf high", Bar{Timestamp: 1, Open: 10, High: math.Inf(1), Low: 9, Close: 11}, false},
	}
	for _, tc := range cases {
		err := tc.bar.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidBar) {
			t.Errorf("%s: expected ErrInvalidBar, got %v", tc.name, err)
		}
	}
}

func TestKline_Key(t *testing.T) {
	k := Kline{Symbol: "BTCUSDT", Interval: "4h"}
	if got := k.Key(); got != "BTCUSDT:4h" {
		t.Errorf("expected BTCUSDT:4h, got %s", got)
	}
}

func TestFeatureRow_RecordRoundTrip(t *testing.T) {
	row := FeatureRow{Timestamp: 42, Values: [FeatureWidth]float64{1, 2, 3, 4, 5, 6, 7, -8, 9, -10}}
	rec := row.Record("ETH", "1d")
	if rec.Symbol != "ETH" || rec.Interval != "1d" || rec.MACD != -8 || rec.OBV != -10 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if back := rec.Row(); back != row {
		t.Errorf("row mismatch: got %+v want %+v", back, row)
	}
}

func TestFeatureColumns_Order(t *testing.T) {
	if FeatureColumns[ColClose] != "close" || FeatureColumns[ColOBV] != "obv" {
		t.Errorf("unexpected column order: %v", FeatureColumns)
	}
	if FeatureWidth != 10 {
		t.Errorf("expected 10 feature columns, got %d", FeatureWidth)
	}
}
