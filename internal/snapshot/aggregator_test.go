package snapshot

import (
	"encoding/json"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/determined-ai/hpcoords/pkg/mmath"
	"github.com/determined-ai/hpcoords/pkg/model"
)

var valLoss = model.MetricName{Name: "loss", Type: model.ValidationMetricType}

func record(id int, metric float64, hps map[string]model.Scalar) model.TrialRecord {
	return model.TrialRecord{TrialID: id, Metric: model.Float(metric), Hparams: hps}
}

func event(records ...model.TrialRecord) model.TrialsSnapshotEvent {
	if records == nil {
		records = []model.TrialRecord{}
	}
	return model.TrialsSnapshotEvent{Trials: records}
}

func TestTwoEventScenario(t *testing.T) {
	a := New(valLoss)
	a.Ingest(event(record(1, 0.2, map[string]model.Scalar{"lr": model.Number(0.01)})))
	s := a.Ingest(event(record(2, 0.8, map[string]model.Scalar{"lr": model.Number(0.1)})))

	expected := &Snapshot{
		TrialIDs: []int{1, 2},
		Columns: map[string][]model.Scalar{
			"lr":       {model.Number(0.01), model.Number(0.1)},
			"[V] loss": {model.Number(0.2), model.Number(0.8)},
		},
		MetricKey:           "[V] loss",
		MetricValues:        model.Floats{0.2, 0.8},
		MetricRange:         &mmath.Range[float64]{Min: 0.2, Max: 0.8},
		EventMetricRange:    &mmath.Range[float64]{Min: 0.8, Max: 0.8},
		ObservedMetricRange: &mmath.Range[float64]{Min: 0.2, Max: 0.8},
		Trials: []TrialHParams{
			{ID: 1, Metric: 0.2, Hparams: map[string]model.Scalar{"lr": model.Number(0.01)}},
			{ID: 2, Metric: 0.8, Hparams: map[string]model.Scalar{"lr": model.Number(0.1)}},
		},
	}
	if diff := cmp.Diff(expected, s, cmp.AllowUnexported(model.Scalar{})); diff != "" {
		t.Errorf("unexpected snapshot (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"lr"}, s.HparamNames())
}

func TestLastWriteWins(t *testing.T) {
	a := New(valLoss)
	a.Ingest(event(record(7, 0.5, map[string]model.Scalar{"opt": model.String("sgd")})))
	s := a.Ingest(event(record(7, 0.9, map[string]model.Scalar{"opt": model.String("adam")})))

	require.Equal(t, []int{7}, s.TrialIDs)
	require.Equal(t, model.Floats{0.9}, s.MetricValues)
	require.Equal(t, []model.Scalar{model.String("adam")}, s.Columns["opt"])
	// The column range follows current values; the observed range remembers overwritten ones.
	require.Equal(t, &mmath.Range[float64]{Min: 0.9, Max: 0.9}, s.MetricRange)
	require.Equal(t, &mmath.Range[float64]{Min: 0.5, Max: 0.9}, s.ObservedMetricRange)
}

func TestAbsentHyperparameters(t *testing.T) {
	a := New(valLoss)
	a.Ingest(event(record(3, 1, map[string]model.Scalar{"layers": model.Number(0)})))
	s := a.Ingest(event(record(1, 2, map[string]model.Scalar{"name": model.String("")})))

	require.Equal(t, []int{1, 3}, s.TrialIDs)
	require.Equal(t, []model.Scalar{model.Absent, model.Number(0)}, s.Columns["layers"])
	require.Equal(t, []model.Scalar{model.String(""), model.Absent}, s.Columns["name"])
}

func TestMalformedAndEmptyEvents(t *testing.T) {
	a := New(valLoss)
	require.Nil(t, a.Ingest(model.TrialsSnapshotEvent{}))
	require.Nil(t, a.Ingest(event()))
	require.False(t, a.Loaded())
	require.Nil(t, a.Last())

	first := a.Ingest(event(record(1, 0.1, nil)))
	require.True(t, a.Loaded())
	require.Equal(t, first, a.Last())

	require.Nil(t, a.Ingest(model.TrialsSnapshotEvent{}))
	require.Equal(t, first, a.Last())

	again := a.Ingest(event())
	require.NotNil(t, again)
	require.Equal(t, first.TrialIDs, again.TrialIDs)
	require.Nil(t, again.EventMetricRange)
}

func TestNaNMetricsDoNotWidenRange(t *testing.T) {
	a := New(valLoss)
	s := a.Ingest(event(record(1, math.NaN(), nil), record(2, 0.3, nil)))
	require.Equal(t, &mmath.Range[float64]{Min: 0.3, Max: 0.3}, s.MetricRange)
	require.Len(t, s.MetricValues, 2)
	require.True(t, math.IsNaN(s.MetricValues[0]))
}

func TestNaNMetricsEncodeAsNull(t *testing.T) {
	a := New(valLoss)
	s := a.Ingest(event(record(1, math.NaN(), nil), record(2, 0.3, nil)))
	bs, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(bs, &decoded))
	require.Equal(t, []int{1, 2}, decoded.TrialIDs)
	require.True(t, math.IsNaN(decoded.MetricValues[0]))
	require.Equal(t, 0.3, decoded.MetricValues[1])
	require.Equal(t, model.Absent, decoded.Columns["[V] loss"][0])
	require.True(t, math.IsNaN(float64(decoded.Trials[0].Metric)))
	require.Equal(t, s.MetricRange, decoded.MetricRange)
}

func TestSnapshotsAreNotAliased(t *testing.T) {
	a := New(valLoss)
	s1 := a.Ingest(event(record(1, 0.1, map[string]model.Scalar{"lr": model.Number(1)})))
	a.Ingest(event(record(2, 0.2, map[string]model.Scalar{"lr": model.Number(2)})))
	require.Equal(t, []int{1}, s1.TrialIDs)
	require.Len(t, s1.Columns["lr"], 1)
}

func TestRandomDeliveriesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42)) //nolint:gosec
	a := New(valLoss)
	names := []string{"lr", "layers", "opt"}
	latest := map[int]float64{}

	var s *Snapshot
	for e := 0; e < 50; e++ {
		var records []model.TrialRecord
		for n := rng.Intn(5); n >= 0; n-- {
			id := rng.Intn(30)
			hps := map[string]model.Scalar{}
			for _, name := range names {
				if rng.Intn(2) == 0 {
					hps[name] = model.Number(rng.Float64())
				}
			}
			metric := rng.Float64()
			latest[id] = metric
			records = append(records, record(id, metric, hps))
		}
		s = a.Ingest(event(records...))

		require.True(t, sort.IntsAreSorted(s.TrialIDs))
		for i := 1; i < len(s.TrialIDs); i++ {
			require.Less(t, s.TrialIDs[i-1], s.TrialIDs[i])
		}
		for name, col := range s.Columns {
			require.Len(t, col, len(s.TrialIDs), "column %s", name)
		}
		require.Len(t, s.MetricValues, len(s.TrialIDs))
		require.Len(t, s.Trials, len(s.TrialIDs))
	}

	ids := make([]int, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	require.Equal(t, ids, s.TrialIDs)
	for i, id := range s.TrialIDs {
		require.Equal(t, latest[id], s.MetricValues[i])
	}
}

func TestStatusOf(t *testing.T) {
	a := New(valLoss)
	require.Equal(t, StatusLoading, StatusOf(a, nil, false, false))
	require.Equal(t, StatusWaiting, StatusOf(a, nil, true, false))
	require.Equal(t, StatusNoData, StatusOf(a, nil, true, true))
	require.Equal(t, StatusNoData, StatusOf(nil, nil, false, true))

	a.Ingest(event(record(1, 0.1, nil)))
	require.Equal(t, StatusLoaded, StatusOf(a, nil, true, true))
	require.Equal(t, StatusError, StatusOf(a, errTest{}, false, false))
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
