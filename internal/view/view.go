package view

import (
	"sort"

	"github.com/determined-ai/hpcoords/internal/colorscale"
	"github.com/determined-ai/hpcoords/internal/filter"
	"github.com/determined-ai/hpcoords/internal/snapshot"
	"github.com/determined-ai/hpcoords/internal/stream"
	"github.com/determined-ai/hpcoords/pkg/mmath"
	"github.com/determined-ai/hpcoords/pkg/model"
	"github.com/determined-ai/hpcoords/pkg/set"
)

const (
	// NoDataMessage is shown when a finished experiment never reported the selected metric.
	NoDataMessage = "No data to plot."
	// WaitingMessage is shown when a running experiment has not reported the selected metric yet.
	WaitingMessage = "Not enough data points to plot. Please wait until the experiment is further along."
)

// Options are the per-viewer inputs that shape a Frame.
type Options struct {
	// Experiment supplies hyperparameter metadata and the searcher's ordering. It may be nil.
	Experiment *model.Experiment
	// HParams selects the hyperparameter axes to show. Empty means every hyperparameter.
	HParams     []string
	Constraints filter.Constraints
}

// Frame is everything needed to draw the parallel coordinates view for one update.
type Frame struct {
	Token      uint64             `json:"token"`
	Key        model.SnapshotKey  `json:"key"`
	Status     snapshot.Status    `json:"status"`
	Message    string             `json:"message,omitempty"`
	Error      string             `json:"error,omitempty"`
	Snapshot   *snapshot.Snapshot `json:"snapshot,omitempty"`
	Dimensions []model.Dimension  `json:"dimensions,omitempty"`
	Filter     filter.Result      `json:"filter"`
	Visible    int                `json:"visible"`
	// Colors holds one color per trial, aligned with the snapshot's trial ids.
	Colors []colorscale.Color `json:"colors,omitempty"`
}

// Build renders an update for a viewer.
func Build(u stream.Update, opts Options) Frame {
	f := Frame{
		Token:    u.Token,
		Key:      u.Key,
		Status:   u.Status,
		Snapshot: u.Snapshot,
	}
	switch u.Status {
	case snapshot.StatusNoData:
		f.Message = NoDataMessage
	case snapshot.StatusWaiting:
		f.Message = WaitingMessage
	case snapshot.StatusError:
		if u.Err != nil {
			f.Error = u.Err.Error()
		}
	}

	f.Filter = filter.Filter(u.Snapshot, opts.Constraints)
	f.Visible = f.Filter.Count()
	if u.Snapshot == nil {
		return f
	}

	var smallerIsBetter *bool
	var hps model.Hyperparameters
	if opts.Experiment != nil {
		smallerIsBetter = opts.Experiment.SmallerIsBetter(u.Key.Metric)
		hps = opts.Experiment.Config.Hyperparameters
	}
	f.Colors = colorscale.Build(u.Snapshot.MetricRange, smallerIsBetter).Map(u.Snapshot.MetricValues)
	f.Dimensions = Dimensions(u.Snapshot, hps, opts.HParams)
	return f
}

// Dimensions lays out the axes for the selected hyperparameters followed by the metric. Axes come
// from hps where it describes them; otherwise they are inferred from the snapshot's values.
func Dimensions(s *snapshot.Snapshot, hps model.Hyperparameters, selected []string) []model.Dimension {
	names := selected
	if len(names) == 0 {
		names = s.HparamNames()
	}

	dims := hps.Dimensions(names)
	for i, name := range names {
		if _, ok := hps[name]; !ok {
			col, _ := s.Column(name)
			dims[i] = inferDimension(name, col)
		}
	}

	if s.MetricRange != nil {
		r := *s.MetricRange
		dims = append(dims, model.Dimension{
			Label: s.MetricKey,
			Type:  model.ScalarDimension,
			Range: &r,
		})
	}
	return dims
}

func inferDimension(name string, col []model.Scalar) model.Dimension {
	var r *mmath.Range[float64]
	categories := set.New[model.Scalar]()
	numeric := true
	for _, v := range col {
		if v.IsAbsent() {
			continue
		}
		categories.Insert(v)
		if f, ok := v.Float(); ok {
			r = mmath.UpdateRange(r, f)
		} else {
			numeric = false
		}
	}

	if numeric {
		return model.Dimension{Label: name, Type: model.ScalarDimension, Range: r}
	}
	vals := categories.ToSlice()
	sort.Slice(vals, func(i, j int) bool { return vals[i].Less(vals[j]) })
	return model.Dimension{Label: name, Type: model.CategoricalDimension, Categories: vals}
}
