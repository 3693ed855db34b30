package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// ScalarKind tags the variant held by a Scalar.
type ScalarKind int

const (
	// AbsentKind marks a value that was never reported.
	AbsentKind ScalarKind = iota
	// NumberKind marks a float64 value.
	NumberKind
	// StringKind marks a string value.
	StringKind
	// BoolKind marks a boolean value.
	BoolKind
)

func (k ScalarKind) String() string {
	switch k {
	case NumberKind:
		return "number"
	case StringKind:
		return "string"
	case BoolKind:
		return "bool"
	default:
		return "absent"
	}
}

// Scalar is a hyperparameter or metric value: a number, a string, a bool, or absent. The zero
// value is absent. Scalars are comparable and can be used as map keys.
type Scalar struct {
	kind ScalarKind
	num  float64
	str  string
	b    bool
}

// Absent is the value of a hyperparameter a trial never reported.
var Absent = Scalar{}

// Number returns a numeric Scalar.
func Number(f float64) Scalar { return Scalar{kind: NumberKind, num: f} }

// String returns a string Scalar.
func String(s string) Scalar { return Scalar{kind: StringKind, str: s} }

// Bool returns a boolean Scalar.
func Bool(b bool) Scalar { return Scalar{kind: BoolKind, b: b} }

// Kind returns the variant tag.
func (s Scalar) Kind() ScalarKind { return s.kind }

// IsAbsent is true for the absent sentinel.
func (s Scalar) IsAbsent() bool { return s.kind == AbsentKind }

// Float returns the numeric value and whether s is a number.
func (s Scalar) Float() (float64, bool) { return s.num, s.kind == NumberKind }

// Str returns the string value and whether s is a string.
func (s Scalar) Str() (string, bool) { return s.str, s.kind == StringKind }

// Boolean returns the boolean value and whether s is a bool.
func (s Scalar) Boolean() (bool, bool) { return s.b, s.kind == BoolKind }

// String renders the value for display; absent values render as "-".
func (s Scalar) String() string {
	switch s.kind {
	case NumberKind:
		return strconv.FormatFloat(s.num, 'g', -1, 64)
	case StringKind:
		return s.str
	case BoolKind:
		return strconv.FormatBool(s.b)
	default:
		return "-"
	}
}

// ScalarOf converts a decoded JSON or Go value into a Scalar, inferring the kind from the value.
// Values that are not scalars (objects, arrays, nil) become Absent.
func ScalarOf(v interface{}) Scalar {
	switch t := v.(type) {
	case Scalar:
		return t
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Absent
		}
		return Number(f)
	case string:
		return String(t)
	case bool:
		return Bool(t)
	default:
		return Absent
	}
}

// MarshalJSON implements the json.Marshaler interface. Absent values marshal to null, as do
// numbers that are not finite.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case NumberKind:
		return Float(s.num).MarshalJSON()
	case StringKind:
		return json.Marshal(s.str)
	case BoolKind:
		return json.Marshal(s.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements the json.Unmarshaler interface. null, objects and arrays decode to
// Absent.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty scalar")
	}
	switch data[0] {
	case 'n', '{', '[':
		*s = Absent
		return nil
	case '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = String(str)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*s = Bool(b)
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return errors.Wrapf(err, "invalid scalar %s", data)
		}
		*s = Number(f)
	}
	return nil
}

// Less orders scalars: absent first, then numbers, strings and bools, each by value.
func (s Scalar) Less(o Scalar) bool {
	if s.kind != o.kind {
		return s.kind < o.kind
	}
	switch s.kind {
	case NumberKind:
		return s.num < o.num
	case StringKind:
		return s.str < o.str
	case BoolKind:
		return !s.b && o.b
	default:
		return false
	}
}

// GoString helps test failure output.
func (s Scalar) GoString() string {
	return fmt.Sprintf("model.Scalar{%s: %s}", s.kind, s)
}
