package filter

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/determined-ai/hpcoords/pkg/mmath"
	"github.com/determined-ai/hpcoords/pkg/model"
	"github.com/determined-ai/hpcoords/pkg/set"
)

// Constraint is a user inclusion rule on one dimension. It is either a RangeConstraint or a
// SetConstraint.
type Constraint interface {
	// Admits reports whether a trial with value v on the constrained dimension stays visible.
	Admits(v model.Scalar) bool
	isConstraint()
}

// RangeConstraint admits numeric values within [Min, Max], bounds included.
type RangeConstraint struct {
	Min float64
	Max float64
}

// Admits implements Constraint. Values that are not numbers are never inside a range.
func (c RangeConstraint) Admits(v model.Scalar) bool {
	f, ok := v.Float()
	return ok && mmath.Range[float64]{Min: c.Min, Max: c.Max}.Contains(f)
}

func (RangeConstraint) isConstraint() {}

// SetConstraint admits values that are members of Allowed.
type SetConstraint struct {
	Allowed set.Set[model.Scalar]
}

// Admits implements Constraint.
func (c SetConstraint) Admits(v model.Scalar) bool {
	return c.Allowed.Contains(v)
}

func (SetConstraint) isConstraint() {}

// Values builds a SetConstraint from its members.
func Values(vals ...model.Scalar) SetConstraint {
	return SetConstraint{Allowed: set.FromSlice(vals)}
}

// Constraints maps dimension names to their active constraint. A nil entry means unconstrained.
type Constraints map[string]Constraint

// wireConstraint is how the chart reports a brush: {"range": [min, max]} on scalar axes and
// {"values": [...]} on categorical ones. When both are present the values win.
type wireConstraint struct {
	Range  []float64      `json:"range,omitempty"`
	Values []model.Scalar `json:"values,omitempty"`
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (cs *Constraints) UnmarshalJSON(data []byte) error {
	var raw map[string]*wireConstraint
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Constraints, len(raw))
	for name, w := range raw {
		switch {
		case w == nil:
			out[name] = nil
		case w.Values != nil:
			out[name] = Values(w.Values...)
		case len(w.Range) == 2:
			out[name] = RangeConstraint{Min: w.Range[0], Max: w.Range[1]}
		default:
			return errors.Errorf("constraint on %q needs a two-element range or a values list", name)
		}
	}
	*cs = out
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (cs Constraints) MarshalJSON() ([]byte, error) {
	out := make(map[string]*wireConstraint, len(cs))
	for name, c := range cs {
		switch t := c.(type) {
		case nil:
			out[name] = nil
		case RangeConstraint:
			out[name] = &wireConstraint{Range: []float64{t.Min, t.Max}}
		case SetConstraint:
			vals := t.Allowed.ToSlice()
			sortScalars(vals)
			out[name] = &wireConstraint{Values: vals}
		default:
			return nil, errors.Errorf("unknown constraint type %T", c)
		}
	}
	return json.Marshal(out)
}
