package model

import (
	"bytes"
	"encoding/json"
	"math"
)

var jsonNull = []byte("null")

// Float is a metric value. Postgres happily stores NaN and infinities, which JSON cannot carry,
// so non-finite values marshal to null and null unmarshals to NaN.
type Float float64

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// MarshalJSON implements the json.Marshaler interface.
func (f Float) MarshalJSON() ([]byte, error) {
	if !finite(float64(f)) {
		return jsonNull, nil
	}
	return json.Marshal(float64(f))
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (f *Float) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Floats is a column of metric values with the JSON encoding of Float.
type Floats []float64

// MarshalJSON implements the json.Marshaler interface.
func (fs Floats) MarshalJSON() ([]byte, error) {
	if fs == nil {
		return jsonNull, nil
	}
	out := make([]Float, len(fs))
	for i, f := range fs {
		out[i] = Float(f)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (fs *Floats) UnmarshalJSON(data []byte) error {
	var in []Float
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in == nil {
		*fs = nil
		return nil
	}
	out := make(Floats, len(in))
	for i, f := range in {
		out[i] = float64(f)
	}
	*fs = out
	return nil
}
