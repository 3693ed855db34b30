package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/determined-ai/hpcoords/pkg/check"
	"github.com/determined-ai/hpcoords/pkg/mmath"
)

const hpConfig = `{
	"global_batch_size": 64,
	"optimizer": {"type": "categorical", "vals": ["adam", "sgd"]},
	"layers": {"type": "int", "minval": 1, "maxval": 8},
	"dropout": {"type": "double", "minval": 0.1, "maxval": 0.5},
	"lr": {"type": "log", "minval": -4, "maxval": -1},
	"width": {"type": "categorical", "vals": [16, 32, 64]},
	"name": {"type": "const", "val": "mnist"}
}`

func parseHPs(t *testing.T) Hyperparameters {
	var hps Hyperparameters
	require.NoError(t, json.Unmarshal([]byte(hpConfig), &hps))
	return hps
}

func TestHyperparametersUnmarshal(t *testing.T) {
	hps := parseHPs(t)
	require.Equal(t, ConstHPType, hps["global_batch_size"].Type())
	require.Equal(t, float64(64), hps["global_batch_size"].ConstHyperparameter.Val)
	require.Equal(t, CategoricalHPType, hps["optimizer"].Type())
	require.Equal(t, IntHPType, hps["layers"].Type())
	require.Equal(t, DoubleHPType, hps["dropout"].Type())
	require.Equal(t, LogHPType, hps["lr"].Type())
	require.Equal(t, ConstHPType, hps["name"].Type())
	require.Equal(t, []string{
		"dropout", "global_batch_size", "layers", "lr", "name", "optimizer", "width",
	}, hps.Names())
	require.NoError(t, check.Validate(hps))
}

func TestHyperparameterRoundTrip(t *testing.T) {
	hps := parseHPs(t)
	bs, err := json.Marshal(hps["layers"])
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"int","minval":1,"maxval":8}`, string(bs))

	var unknown Hyperparameter
	require.ErrorContains(t,
		json.Unmarshal([]byte(`{"type":"fancy"}`), &unknown), "unexpected type: fancy")
}

func TestHyperparameterValidate(t *testing.T) {
	bad := Hyperparameters{
		"layers": {IntHyperparameter: &IntHyperparameter{Minval: 4, Maxval: 2}},
		"opt":    {CategoricalHyperparameter: &CategoricalHyperparameter{}},
	}
	err := check.Validate(bad)
	require.ErrorContains(t, err, "hyperparameter layers")
	require.ErrorContains(t, err, "must have at least one category")
}

func TestScalarKindAndCoerce(t *testing.T) {
	hps := parseHPs(t)
	require.Equal(t, NumberKind, hps["lr"].ScalarKind())
	require.Equal(t, StringKind, hps["optimizer"].ScalarKind())
	require.Equal(t, NumberKind, hps["width"].ScalarKind())
	require.Equal(t, StringKind, hps["name"].ScalarKind())

	mixed := Hyperparameter{CategoricalHyperparameter: &CategoricalHyperparameter{
		Vals: []interface{}{1.0, "two"},
	}}
	require.Equal(t, AbsentKind, mixed.ScalarKind())

	require.Equal(t, Number(0.001), hps["lr"].Coerce("0.001"))
	require.Equal(t, Number(32), hps["width"].Coerce(32))
	require.Equal(t, String("adam"), hps["optimizer"].Coerce("adam"))
	require.Equal(t, String("x"), mixed.Coerce("x"))
}

func TestDimension(t *testing.T) {
	hps := parseHPs(t)

	lr := hps["lr"].Dimension("lr")
	require.Equal(t, ScalarDimension, lr.Type)
	require.True(t, lr.Logarithmic)
	require.InDelta(t, 1e-4, lr.Range.Min, 1e-12)
	require.InDelta(t, 1e-1, lr.Range.Max, 1e-12)

	require.Equal(t, Dimension{
		Label: "layers",
		Type:  ScalarDimension,
		Range: &mmath.Range[float64]{Min: 1, Max: 8},
	}, hps["layers"].Dimension("layers"))

	require.Equal(t, Dimension{
		Label:      "optimizer",
		Type:       CategoricalDimension,
		Categories: []Scalar{String("adam"), String("sgd")},
	}, hps["optimizer"].Dimension("optimizer"))

	dims := hps.Dimensions([]string{"global_batch_size", "unknown"})
	require.Equal(t, ScalarDimension, dims[0].Type)
	require.Nil(t, dims[0].Range)
	require.Equal(t, Dimension{Label: "unknown", Type: ScalarDimension}, dims[1])
}

func TestCoerceAllFlattens(t *testing.T) {
	hps := Hyperparameters{
		"optimizer.lr": {DoubleHyperparameter: &DoubleHyperparameter{Minval: 0, Maxval: 1}},
	}
	got := hps.CoerceAll(map[string]interface{}{
		"optimizer": map[string]interface{}{"lr": "0.5", "name": "adam"},
		"layers":    3.0,
		"tags":      []interface{}{"a"},
	})
	require.Equal(t, map[string]Scalar{
		"optimizer.lr":   Number(0.5),
		"optimizer.name": String("adam"),
		"layers":         Number(3),
		"tags":           Absent,
	}, got)
}
