package check

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type window struct {
	lo, hi int
	unit   string
}

func (w window) Validate() []error {
	return []error{
		GreaterThan(w.hi, w.lo, "hi must exceed lo"),
		Contains(w.unit, []string{"batches", "epochs"}, "unknown unit"),
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(window{lo: 1, hi: 2, unit: "batches"}))

	err := Validate(window{lo: 2, hi: 2, unit: "records"})
	require.Error(t, err)
	require.ErrorContains(t, err, "hi must exceed lo")
	require.ErrorContains(t, err, "unknown unit")
}

func TestGreaterThanOrEqualTo(t *testing.T) {
	require.NoError(t, GreaterThanOrEqualTo(0, 0, "margin"))
	require.ErrorContains(t, GreaterThanOrEqualTo(-1, 0, "margin"), "margin: -1 is less than 0")
}
