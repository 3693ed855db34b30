package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/determined-ai/hpcoords/internal/api"
	"github.com/determined-ai/hpcoords/internal/db"
	"github.com/determined-ai/hpcoords/internal/filter"
	"github.com/determined-ai/hpcoords/internal/server"
	"github.com/determined-ai/hpcoords/internal/snapshot"
	"github.com/determined-ai/hpcoords/internal/stream"
	"github.com/determined-ai/hpcoords/internal/view"
	"github.com/determined-ai/hpcoords/pkg/model"
)

func TestParseConstraints(t *testing.T) {
	cs, err := parseConstraints(
		[]string{"lr=0.001:0.1", "dropout=0:0.5", "lr=0.01:1"},
		[]string{"optimizer=adam,sgd", "layers=2,4", "bias=true"},
	)
	require.NoError(t, err)
	require.Equal(t, filter.RangeConstraint{Min: 0.01, Max: 1}, cs["lr"])
	require.Equal(t, filter.RangeConstraint{Min: 0, Max: 0.5}, cs["dropout"])
	require.Equal(t, filter.Values(model.String("adam"), model.String("sgd")), cs["optimizer"])
	require.Equal(t, filter.Values(model.Number(2), model.Number(4)), cs["layers"])
	require.Equal(t, filter.Values(model.Bool(true)), cs["bias"])
}

func TestParseConstraintsErrors(t *testing.T) {
	cases := []struct {
		name   string
		ranges []string
		values []string
	}{
		{"missing name", []string{"=0:1"}, nil},
		{"missing colon", []string{"lr=0.1"}, nil},
		{"bad lower bound", []string{"lr=x:1"}, nil},
		{"bad upper bound", []string{"lr=0:y"}, nil},
		{"inverted range", []string{"lr=1:0"}, nil},
		{"values without name", nil, []string{"adam,sgd"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseConstraints(tc.ranges, tc.values)
			require.Error(t, err)
		})
	}
}

func TestRenderFrame(t *testing.T) {
	metric := model.MetricName{Name: "loss", Type: model.ValidationMetricType}
	agg := snapshot.New(metric)
	snap := agg.Ingest(model.TrialsSnapshotEvent{Trials: []model.TrialRecord{
		{TrialID: 1, Metric: 0.5, Hparams: map[string]model.Scalar{"lr": model.Number(0.1)}},
		{TrialID: 2, Metric: 0.25, Hparams: map[string]model.Scalar{"lr": model.Number(0.01)}},
	}})
	require.NotNil(t, snap)

	u := stream.Update{
		Token:    1,
		Key:      model.SnapshotKey{ExperimentID: 4, BatchesProcessed: 100, Metric: metric},
		Snapshot: snap,
		Status:   snapshot.StatusLoaded,
	}
	out := renderFrame(view.Build(u, view.Options{
		Constraints: filter.Constraints{"lr": filter.RangeConstraint{Min: 0.05, Max: 1}},
	}))

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	require.Contains(t, lines[0], "experiment 4  [V] loss at 100 batches  [loaded]")
	require.Contains(t, lines[1], "trial")
	require.Contains(t, lines[1], "lr")
	require.Contains(t, lines[2], "0.1")
	require.Contains(t, lines[3], "0.01")
	require.Equal(t, "1 of 2 trials visible", lines[4])
}

func TestRenderFrameMessages(t *testing.T) {
	key := model.SnapshotKey{
		ExperimentID: 4, Metric: model.MetricName{Name: "loss", Type: model.TrainingMetricType},
	}
	out := renderFrame(view.Build(stream.Update{Key: key, Status: snapshot.StatusNoData}, view.Options{}))
	require.Contains(t, out, view.NoDataMessage)

	out = renderFrame(view.Build(stream.Update{
		Key: key, Status: snapshot.StatusError, Err: context.DeadlineExceeded,
	}, view.Options{}))
	require.Contains(t, out, "error: context deadline exceeded")
}

type watchStore struct {
	mu    sync.Mutex
	polls int
}

func (s *watchStore) TrialsSnapshot(
	_ context.Context, _ int, _ int, _ int, _ model.MetricName, _ model.Hyperparameters, start time.Time,
) ([]model.TrialRecord, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.polls > 1 {
		return nil, start, nil
	}
	return []model.TrialRecord{
		{TrialID: 1, Metric: 0.5, BatchesProcessed: 100, Hparams: map[string]model.Scalar{"lr": model.Number(0.1)}},
		{TrialID: 2, Metric: 0.3, BatchesProcessed: 100, Hparams: map[string]model.Scalar{"lr": model.Number(0.01)}},
	}, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), nil
}

func (s *watchStore) ExperimentByID(_ context.Context, id int) (*model.Experiment, error) {
	if id != 1 {
		return nil, db.ErrNotFound
	}
	return &model.Experiment{
		ID:    1,
		State: model.CompletedState,
		Config: model.ExperimentConfig{
			Searcher: model.SearcherConfig{Name: "random", Metric: "loss"},
		},
	}, nil
}

func (s *watchStore) ExperimentState(_ context.Context, id int) (model.State, error) {
	if id != 1 {
		return "", db.ErrNotFound
	}
	return model.CompletedState, nil
}

func newWatchServer(t *testing.T) *httptest.Server {
	opts := api.DefaultOptions()
	opts.Period = 10 * time.Millisecond
	e, err := server.NewEcho(&watchStore{}, "test", prometheus.NewRegistry(), opts)
	require.NoError(t, err)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunWatch(t *testing.T) {
	srv := newWatchServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var out bytes.Buffer
	err := runWatch(ctx, watchOptions{
		server:     srv.URL,
		experiment: 1,
		batches:    100,
		metric:     "validation.loss",
		ranges:     []string{"lr=0.05:1"},
	}, &out)
	require.NoError(t, err)

	require.Contains(t, out.String(), "[loading]")
	last := out.String()[strings.LastIndex(out.String(), "experiment 1 "):]
	require.Contains(t, last, "[loaded]")
	require.Contains(t, last, "1 of 2 trials visible")
}

func TestRunWatchUnknownExperiment(t *testing.T) {
	srv := newWatchServer(t)
	err := runWatch(context.Background(), watchOptions{
		server:     srv.URL,
		experiment: 7,
		metric:     "validation.loss",
	}, &bytes.Buffer{})
	require.ErrorContains(t, err, "fetching experiment 7")
}

func TestRunWatchBadMetric(t *testing.T) {
	err := runWatch(context.Background(), watchOptions{server: "http://localhost", metric: "loss"}, &bytes.Buffer{})
	require.ErrorContains(t, err, "invalid metric identifier")
}
