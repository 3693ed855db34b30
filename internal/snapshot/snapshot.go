package snapshot

import (
	"github.com/determined-ai/hpcoords/pkg/mmath"
	"github.com/determined-ai/hpcoords/pkg/model"
)

// Snapshot is the columnar view of every trial seen by one subscription. All columns are aligned
// with TrialIDs, which is strictly increasing.
type Snapshot struct {
	TrialIDs []int `json:"trialIds"`
	// Columns holds one column per hyperparameter, plus the metric under MetricKey.
	Columns      map[string][]model.Scalar `json:"data"`
	MetricKey    string                    `json:"metricKey"`
	MetricValues model.Floats              `json:"metricValues"`
	// MetricRange spans the metric column as it stands after this event.
	MetricRange *mmath.Range[float64] `json:"metricRange,omitempty"`
	// EventMetricRange spans only the metric values delivered by the latest event.
	EventMetricRange *mmath.Range[float64] `json:"eventMetricRange,omitempty"`
	// ObservedMetricRange spans every metric value ever delivered, including overwritten ones.
	ObservedMetricRange *mmath.Range[float64] `json:"observedMetricRange,omitempty"`
	Trials              []TrialHParams        `json:"trials"`
}

// TrialHParams is one row of the trial table shown next to the chart.
type TrialHParams struct {
	ID      int                     `json:"id"`
	Metric  model.Float             `json:"metric"`
	Hparams map[string]model.Scalar `json:"hparams"`
}

// Len is the number of trials in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.TrialIDs)
}

// Column returns the values of the named dimension and whether it exists.
func (s *Snapshot) Column(name string) ([]model.Scalar, bool) {
	if s == nil {
		return nil, false
	}
	col, ok := s.Columns[name]
	return col, ok
}

// HparamNames returns the dimension names other than the metric.
func (s *Snapshot) HparamNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Columns))
	for name := range s.Columns {
		if name != s.MetricKey {
			names = append(names, name)
		}
	}
	return sortedStrings(names)
}
