package model

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/determined-ai/hpcoords/pkg/check"
	"github.com/determined-ai/hpcoords/pkg/mmath"
)

// Hyperparameter types as written in an experiment config.
const (
	ConstHPType       = "const"
	IntHPType         = "int"
	DoubleHPType      = "double"
	LogHPType         = "log"
	CategoricalHPType = "categorical"
)

// defaultLogBase is used when a log hyperparameter does not set a base.
const defaultLogBase = 10.0

// Hyperparameters holds a mapping from hyperparameter name to its configuration.
type Hyperparameters map[string]Hyperparameter

// Each applies the function to each hyperparameter in string order of the name.
func (h Hyperparameters) Each(f func(name string, param Hyperparameter)) {
	for _, k := range h.Names() {
		f(k, h[k])
	}
}

// Names returns the hyperparameter names in sorted order.
func (h Hyperparameters) Names() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate implements the check.Validatable interface.
func (h Hyperparameters) Validate() []error {
	var errs []error
	h.Each(func(name string, param Hyperparameter) {
		for _, err := range param.Validate() {
			if err != nil {
				errs = append(errs, errors.Wrapf(err, "hyperparameter %s", name))
			}
		}
	})
	return errs
}

// Hyperparameter is a sum type for hyperparameters; exactly one field is set.
type Hyperparameter struct {
	ConstHyperparameter       *ConstHyperparameter
	IntHyperparameter         *IntHyperparameter
	DoubleHyperparameter      *DoubleHyperparameter
	LogHyperparameter         *LogHyperparameter
	CategoricalHyperparameter *CategoricalHyperparameter
}

// ConstHyperparameter is a constant.
type ConstHyperparameter struct {
	Val interface{} `json:"val"`
}

// IntHyperparameter is an interval of ints.
type IntHyperparameter struct {
	Minval int  `json:"minval"`
	Maxval int  `json:"maxval"`
	Count  *int `json:"count,omitempty"`
}

// DoubleHyperparameter is an interval of float64s.
type DoubleHyperparameter struct {
	Minval float64 `json:"minval"`
	Maxval float64 `json:"maxval"`
	Count  *int    `json:"count,omitempty"`
}

// LogHyperparameter is a log-uniformly distributed interval of float64s.
type LogHyperparameter struct {
	// Minimum value is `base ^ minval`.
	Minval float64 `json:"minval"`
	// Maximum value is `base ^ maxval`.
	Maxval float64  `json:"maxval"`
	Base   *float64 `json:"base,omitempty"`
	Count  *int     `json:"count,omitempty"`
}

// CategoricalHyperparameter is a collection of values (levels) of the category.
type CategoricalHyperparameter struct {
	Vals []interface{} `json:"vals"`
}

// Type returns the config type name of the set variant.
func (h Hyperparameter) Type() string {
	switch {
	case h.ConstHyperparameter != nil:
		return ConstHPType
	case h.IntHyperparameter != nil:
		return IntHPType
	case h.DoubleHyperparameter != nil:
		return DoubleHPType
	case h.LogHyperparameter != nil:
		return LogHPType
	case h.CategoricalHyperparameter != nil:
		return CategoricalHPType
	default:
		return ""
	}
}

// MarshalJSON implements the json.Marshaler interface.
func (h Hyperparameter) MarshalJSON() ([]byte, error) {
	var body interface{}
	switch {
	case h.ConstHyperparameter != nil:
		body = h.ConstHyperparameter
	case h.IntHyperparameter != nil:
		body = h.IntHyperparameter
	case h.DoubleHyperparameter != nil:
		body = h.DoubleHyperparameter
	case h.LogHyperparameter != nil:
		body = h.LogHyperparameter
	case h.CategoricalHyperparameter != nil:
		body = h.CategoricalHyperparameter
	default:
		return nil, errors.New("empty hyperparameter")
	}
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(bs, &fields); err != nil {
		return nil, err
	}
	fields["type"] = h.Type()
	return json.Marshal(fields)
}

// UnmarshalJSON implements the json.Unmarshaler interface. A bare value (not an object with a
// "type" key) is shorthand for a const hyperparameter.
func (h *Hyperparameter) UnmarshalJSON(data []byte) error {
	var parsed interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	obj, ok := parsed.(map[string]interface{})
	if !ok {
		*h = Hyperparameter{ConstHyperparameter: &ConstHyperparameter{Val: parsed}}
		return nil
	}
	typ, ok := obj["type"].(string)
	if !ok {
		*h = Hyperparameter{ConstHyperparameter: &ConstHyperparameter{Val: parsed}}
		return nil
	}

	*h = Hyperparameter{}
	var target interface{}
	switch typ {
	case ConstHPType:
		h.ConstHyperparameter = &ConstHyperparameter{}
		target = h.ConstHyperparameter
	case IntHPType:
		h.IntHyperparameter = &IntHyperparameter{}
		target = h.IntHyperparameter
	case DoubleHPType:
		h.DoubleHyperparameter = &DoubleHyperparameter{}
		target = h.DoubleHyperparameter
	case LogHPType:
		h.LogHyperparameter = &LogHyperparameter{}
		target = h.LogHyperparameter
	case CategoricalHPType:
		h.CategoricalHyperparameter = &CategoricalHyperparameter{}
		target = h.CategoricalHyperparameter
	default:
		return errors.Errorf("unexpected type: %s", typ)
	}
	return json.Unmarshal(data, target)
}

// Validate implements the check.Validatable interface.
func (h Hyperparameter) Validate() []error {
	switch {
	case h.IntHyperparameter != nil:
		p := h.IntHyperparameter
		return []error{check.GreaterThan(p.Maxval, p.Minval, "minval is greater than maxval")}
	case h.DoubleHyperparameter != nil:
		p := h.DoubleHyperparameter
		return []error{check.GreaterThan(p.Maxval, p.Minval, "minval is greater than maxval")}
	case h.LogHyperparameter != nil:
		p := h.LogHyperparameter
		errs := []error{check.GreaterThan(p.Maxval, p.Minval, "minval is greater than maxval")}
		if p.Base != nil {
			errs = append(errs, check.GreaterThan(*p.Base, 0.0, "base must be > 0"))
		}
		return errs
	case h.CategoricalHyperparameter != nil:
		return []error{check.GreaterThan(
			len(h.CategoricalHyperparameter.Vals), 0, "must have at least one category")}
	case h.ConstHyperparameter != nil:
		return nil
	default:
		return []error{errors.New("hyperparameter has no type")}
	}
}

// ScalarKind is the type tag raw values of this hyperparameter are coerced to. Categorical and
// const hyperparameters take the kind of their values; mixed or non-scalar values yield
// AbsentKind, meaning the kind is inferred per value.
func (h Hyperparameter) ScalarKind() ScalarKind {
	switch {
	case h.IntHyperparameter != nil, h.DoubleHyperparameter != nil, h.LogHyperparameter != nil:
		return NumberKind
	case h.ConstHyperparameter != nil:
		return ScalarOf(h.ConstHyperparameter.Val).Kind()
	case h.CategoricalHyperparameter != nil:
		kind := AbsentKind
		for i, v := range h.CategoricalHyperparameter.Vals {
			k := ScalarOf(v).Kind()
			if i > 0 && k != kind {
				return AbsentKind
			}
			kind = k
		}
		return kind
	default:
		return AbsentKind
	}
}

// Coerce converts a raw reported value to a Scalar of this hyperparameter's kind. Values that do
// not match the declared kind fall back to per-value inference.
func (h Hyperparameter) Coerce(raw interface{}) Scalar {
	s := ScalarOf(raw)
	want := h.ScalarKind()
	if want == AbsentKind || s.Kind() == want {
		return s
	}
	if want == NumberKind {
		if str, ok := s.Str(); ok {
			var f float64
			if err := json.Unmarshal([]byte(str), &f); err == nil {
				return Number(f)
			}
		}
	}
	return s
}

// DimensionType is how a dimension's axis is laid out.
type DimensionType string

const (
	// ScalarDimension is a continuous numeric axis.
	ScalarDimension DimensionType = "scalar"
	// CategoricalDimension is an axis of discrete levels.
	CategoricalDimension DimensionType = "categorical"
)

// Dimension describes one axis of the parallel coordinates view.
type Dimension struct {
	Label       string                `json:"label"`
	Type        DimensionType         `json:"type"`
	Categories  []Scalar              `json:"categories,omitempty"`
	Range       *mmath.Range[float64] `json:"range,omitempty"`
	Logarithmic bool                  `json:"logarithmic,omitempty"`
}

// Dimension derives the axis for this hyperparameter.
func (h Hyperparameter) Dimension(label string) Dimension {
	d := Dimension{Label: label, Type: ScalarDimension}
	switch {
	case h.IntHyperparameter != nil:
		p := h.IntHyperparameter
		d.Range = &mmath.Range[float64]{Min: float64(p.Minval), Max: float64(p.Maxval)}
	case h.DoubleHyperparameter != nil:
		p := h.DoubleHyperparameter
		d.Range = &mmath.Range[float64]{Min: p.Minval, Max: p.Maxval}
	case h.LogHyperparameter != nil:
		p := h.LogHyperparameter
		base := defaultLogBase
		if p.Base != nil {
			base = *p.Base
		}
		d.Logarithmic = true
		d.Range = &mmath.Range[float64]{
			Min: math.Pow(base, p.Minval),
			Max: math.Pow(base, p.Maxval),
		}
	case h.CategoricalHyperparameter != nil:
		d.Type = CategoricalDimension
		for _, v := range h.CategoricalHyperparameter.Vals {
			d.Categories = append(d.Categories, ScalarOf(v))
		}
	case h.ConstHyperparameter != nil:
		if v := ScalarOf(h.ConstHyperparameter.Val); v.Kind() != NumberKind {
			d.Type = CategoricalDimension
			d.Categories = []Scalar{v}
		}
	}
	return d
}

// Dimensions returns the axes for the named hyperparameters, in the order given. Names without
// metadata get a bare scalar axis.
func (h Hyperparameters) Dimensions(names []string) []Dimension {
	dims := make([]Dimension, 0, len(names))
	for _, name := range names {
		hp, ok := h[name]
		if !ok {
			dims = append(dims, Dimension{Label: name, Type: ScalarDimension})
			continue
		}
		dims = append(dims, hp.Dimension(name))
	}
	return dims
}

// CoerceAll flattens nested hyperparameter values into dotted names and coerces each one using
// the matching metadata, inferring the kind for names without metadata.
func (h Hyperparameters) CoerceAll(raw map[string]interface{}) map[string]Scalar {
	out := make(map[string]Scalar, len(raw))
	for name, v := range FlattenHparams(raw) {
		if hp, ok := h[name]; ok {
			out[name] = hp.Coerce(v)
		} else {
			out[name] = ScalarOf(v)
		}
	}
	return out
}

// FlattenHparams turns {"optimizer": {"lr": 0.1}} into {"optimizer.lr": 0.1}.
func FlattenHparams(raw map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(raw))
	var walk func(prefix []string, m map[string]interface{})
	walk = func(prefix []string, m map[string]interface{}) {
		for k, v := range m {
			path := append(append([]string{}, prefix...), k)
			if nested, ok := v.(map[string]interface{}); ok {
				walk(path, nested)
				continue
			}
			out[strings.Join(path, ".")] = v
		}
	}
	walk(nil, raw)
	return out
}
