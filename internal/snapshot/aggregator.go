package snapshot

import (
	"sort"

	"github.com/emirpasic/gods/sets/treeset"
	"golang.org/x/exp/maps"

	"github.com/determined-ai/hpcoords/pkg/mmath"
	"github.com/determined-ai/hpcoords/pkg/model"
)

// Aggregator accumulates streamed trial records for one selection and rebuilds a Snapshot on
// every event. An Aggregator is never reset; a new selection gets a new Aggregator.
type Aggregator struct {
	metricKey string

	trialIDs *treeset.Set
	metrics  map[int]float64
	hparams  map[string]map[int]model.Scalar
	table    map[int]TrialHParams
	observed *mmath.Range[float64]

	last *Snapshot
}

// New returns an empty Aggregator for the given metric.
func New(metric model.MetricName) *Aggregator {
	return &Aggregator{
		metricKey: metric.String(),
		trialIDs:  treeset.NewWithIntComparator(),
		metrics:   make(map[int]float64),
		hparams:   make(map[string]map[int]model.Scalar),
		table:     make(map[int]TrialHParams),
	}
}

// Loaded is true once an event with at least one trial has been ingested.
func (a *Aggregator) Loaded() bool {
	return a.last != nil
}

// Last returns the most recently emitted snapshot, or nil while empty.
func (a *Aggregator) Last() *Snapshot {
	return a.last
}

// Ingest folds one event into the accumulated state and returns the rebuilt snapshot. Events
// without a trial array are skipped, as are empty events before anything was loaded; in both
// cases Ingest returns nil.
func (a *Aggregator) Ingest(event model.TrialsSnapshotEvent) *Snapshot {
	if event.Trials == nil {
		return nil
	}
	if len(event.Trials) == 0 && !a.Loaded() {
		return nil
	}

	var eventRange *mmath.Range[float64]
	for _, trial := range event.Trials {
		id, metric := trial.TrialID, float64(trial.Metric)
		a.trialIDs.Add(id)
		a.metrics[id] = metric
		a.observed = mmath.UpdateRange(a.observed, metric)
		eventRange = mmath.UpdateRange(eventRange, metric)

		for name, value := range trial.Hparams {
			if a.hparams[name] == nil {
				a.hparams[name] = make(map[int]model.Scalar)
			}
			a.hparams[name][id] = value
		}

		a.table[id] = TrialHParams{ID: id, Metric: trial.Metric, Hparams: cloneHparams(trial.Hparams)}
	}

	ids := a.sortedIDs()
	columns := make(map[string][]model.Scalar, len(a.hparams)+1)
	for name, byTrial := range a.hparams {
		col := make([]model.Scalar, len(ids))
		for i, id := range ids {
			// Missing entries read as the zero Scalar, which is model.Absent.
			col[i] = byTrial[id]
		}
		columns[name] = col
	}

	metricValues := make(model.Floats, len(ids))
	metricCol := make([]model.Scalar, len(ids))
	trials := make([]TrialHParams, len(ids))
	for i, id := range ids {
		metricValues[i] = a.metrics[id]
		metricCol[i] = model.Number(a.metrics[id])
		trials[i] = a.table[id]
	}
	columns[a.metricKey] = metricCol

	a.last = &Snapshot{
		TrialIDs:            ids,
		Columns:             columns,
		MetricKey:           a.metricKey,
		MetricValues:        metricValues,
		MetricRange:         mmath.NumericRange([]float64(metricValues)),
		EventMetricRange:    eventRange,
		ObservedMetricRange: copyRange(a.observed),
		Trials:              trials,
	}
	return a.last
}

func (a *Aggregator) sortedIDs() []int {
	vals := a.trialIDs.Values()
	ids := make([]int, len(vals))
	for i, v := range vals {
		ids[i] = v.(int)
	}
	return ids
}

func cloneHparams(in map[string]model.Scalar) map[string]model.Scalar {
	if in == nil {
		return map[string]model.Scalar{}
	}
	return maps.Clone(in)
}

func copyRange(r *mmath.Range[float64]) *mmath.Range[float64] {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func sortedStrings(s []string) []string {
	sort.Strings(s)
	return s
}
