package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/determined-ai/hpcoords/pkg/check"
)

func TestSmallerIsBetter(t *testing.T) {
	f := false
	exp := Experiment{Config: ExperimentConfig{
		Searcher: SearcherConfig{Metric: "accuracy", SmallerIsBetter: &f},
	}}

	got := exp.SmallerIsBetter(MetricName{Name: "accuracy", Type: ValidationMetricType})
	require.NotNil(t, got)
	require.False(t, *got)

	require.Nil(t, exp.SmallerIsBetter(MetricName{Name: "accuracy", Type: TrainingMetricType}))
	require.Nil(t, exp.SmallerIsBetter(MetricName{Name: "loss", Type: ValidationMetricType}))

	exp.Config.Searcher.SmallerIsBetter = nil
	got = exp.SmallerIsBetter(MetricName{Name: "accuracy", Type: ValidationMetricType})
	require.True(t, *got)
}

func TestExperimentConfigJSON(t *testing.T) {
	raw := `{
		"name": "mnist",
		"hyperparameters": {"lr": {"type": "double", "minval": 0.001, "maxval": 0.1}},
		"searcher": {"name": "adaptive_asha", "metric": "validation_loss", "smaller_is_better": true}
	}`
	var cfg ExperimentConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	require.Equal(t, "validation_loss", cfg.Searcher.Metric)
	require.True(t, *cfg.Searcher.SmallerIsBetter)
	require.Equal(t, DoubleHPType, cfg.Hyperparameters["lr"].Type())
}

func TestIsTerminal(t *testing.T) {
	require.True(t, Experiment{State: CompletedState}.IsTerminal())
	require.True(t, Experiment{State: ErrorState}.IsTerminal())
	require.False(t, Experiment{State: ActiveState}.IsTerminal())
	require.False(t, Experiment{State: StoppingCompletedState}.IsTerminal())
}

func TestSnapshotKeyValidate(t *testing.T) {
	ok := SnapshotKey{
		ExperimentID: 1, BatchesProcessed: 100,
		Metric: MetricName{Name: "loss", Type: ValidationMetricType},
	}
	require.NoError(t, check.Validate(ok))

	err := check.Validate(SnapshotKey{BatchesProcessed: -1})
	require.ErrorContains(t, err, "experiment id must be positive")
	require.ErrorContains(t, err, "batches processed must be >= 0")
	require.ErrorContains(t, err, "metric: metric name must be set")
}
