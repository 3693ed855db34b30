package mmath

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Min returns the smallest value of all provided values.
func Min[T constraints.Ordered](values ...T) T {
	minValue := values[0]
	for _, value := range values[1:] {
		if value < minValue {
			minValue = value
		}
	}
	return minValue
}

// Max returns the largest value of all provided values.
func Max[T constraints.Ordered](values ...T) T {
	maxValue := values[0]
	for _, value := range values[1:] {
		if value > maxValue {
			maxValue = value
		}
	}
	return maxValue
}

// Range is an inclusive [Min, Max] interval.
type Range[T constraints.Integer | constraints.Float] struct {
	Min T `json:"min"`
	Max T `json:"max"`
}

// Contains reports whether v lies within the range, bounds included.
func (r Range[T]) Contains(v T) bool {
	return v >= r.Min && v <= r.Max
}

// Span is Max - Min.
func (r Range[T]) Span() T {
	return r.Max - r.Min
}

// UpdateRange widens the range to include value. A nil range is uninitialized and becomes
// {value, value}. Values that are not finite are skipped and leave the range untouched.
func UpdateRange[T constraints.Integer | constraints.Float](current *Range[T], value T) *Range[T] {
	if f := float64(value); math.IsNaN(f) || math.IsInf(f, 0) {
		return current
	}
	if current == nil {
		return &Range[T]{Min: value, Max: value}
	}
	return &Range[T]{Min: Min(current.Min, value), Max: Max(current.Max, value)}
}

// NumericRange returns the range spanned by values, or nil if none of them are finite.
func NumericRange[T constraints.Integer | constraints.Float](values []T) *Range[T] {
	var r *Range[T]
	for _, v := range values {
		r = UpdateRange(r, v)
	}
	return r
}
