package indicator

import (
	"encoding/json"
	"math"
	"strconv"
)

// Value is an indicator result: either a defined real number or undefined
// because the input was too short. The zero Value is undefined, so a
// negative MACD or OBV can never be mistaken for "no data".
type Value struct {
	v  float64
	ok bool
}

// Defined wraps x. NaN and ±Inf are never defined values.
func Defined(x float64) Value {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Value{}
	}
	return Value{v: x, ok: true}
}

// Undefined returns the insufficient-data marker.
func Undefined() Value { return Value{} }

// Float returns the number and whether it is defined.
func (v Value) Float() (float64, bool) { return v.v, v.ok }

// IsDefined reports whether v holds a number.
func (v Value) IsDefined() bool { return v.ok }

// Or returns the number, or fallback when undefined.
func (v Value) Or(fallback float64) float64 {
	if !v.ok {
		return fallback
	}
	return v.v
}

// Format renders the number with prec decimals, or "N/A".
func (v Value) Format(prec int) string {
	if !v.ok {
		return "N/A"
	}
	return strconv.FormatFloat(v.v, 'f', prec, 64)
}

func (v Value) String() string { return v.Format(-1) }

// MarshalJSON encodes undefined values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

// UnmarshalJSON decodes null as undefined.
func (v *Value) UnmarshalJSON(data []byte) error {
	var f *float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if f == nil {
		*v = Undefined()
		return nil
	}
	*v = Defined(*f)
	return nil
}
