package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/determined-ai/hpcoords/internal/prom"
	"github.com/determined-ai/hpcoords/pkg/model"
)

type snapshotWrapper struct {
	TrialID int       `db:"trial_id"`
	Hparams []byte    `db:"hparams"`
	Metric  float64   `db:"metric"`
	EndTime time.Time `db:"end_time"`
	Batches int       `db:"batches"`
}

func snapshotWrapperToTrial(r snapshotWrapper, hps model.Hyperparameters) (model.TrialRecord, error) {
	var inter map[string]interface{}
	if len(r.Hparams) > 0 {
		if err := json.Unmarshal(r.Hparams, &inter); err != nil {
			return model.TrialRecord{}, err
		}
	}
	return model.TrialRecord{
		TrialID:          r.TrialID,
		Metric:           model.Float(r.Metric),
		Hparams:          hps.CoerceAll(inter),
		BatchesProcessed: r.Batches,
	}, nil
}

// TrialsSnapshot returns the metric reported by each trial of an experiment within a window of
// training progress, for rows that ended after startTime. It also returns the latest end time
// among the returned rows, or startTime if there were none, to use as the next cursor. Hparams
// are coerced using hps when it describes them.
func (db *PgDB) TrialsSnapshot(
	ctx context.Context, experimentID int, minBatches int, maxBatches int,
	metric model.MetricName, hps model.Hyperparameters, startTime time.Time,
) (trials []model.TrialRecord, endTime time.Time, err error) {
	defer prom.Time(prom.SnapshotQuerySeconds)()

	var rows []snapshotWrapper
	metricPath := metric.Type.JSONPath()
	endTime = startTime
	err = db.queryRows(ctx, `
SELECT
  t.id AS trial_id,
  t.hparams AS hparams,
  (s.metrics->'`+metricPath+`'->>$1)::float8 AS metric,
  s.end_time AS end_time,
  s.total_batches AS batches
FROM trials t
  INNER JOIN metrics s ON t.id=s.trial_id
WHERE t.experiment_id=$2
  AND s.total_batches>=$3
  AND s.total_batches<=$4
  AND s.metrics->'`+metricPath+`'->$1 IS NOT NULL
  AND s.end_time > $5
  AND s.metric_group = $6
ORDER BY s.end_time;`, &rows,
		metric.Name, experimentID, minBatches, maxBatches, startTime, string(metric.Type))
	if err != nil {
		return nil, endTime, errors.Wrapf(err,
			"failed to get snapshot for experiment %d and metric %s", experimentID, metric)
	}

	trials = make([]model.TrialRecord, 0, len(rows))
	for _, row := range rows {
		trial, err := snapshotWrapperToTrial(row, hps)
		if err != nil {
			return nil, startTime, errors.Wrapf(err, "failed to process hparams of trial %d", row.TrialID)
		}
		trials = append(trials, trial)
		if row.EndTime.After(endTime) {
			endTime = row.EndTime
		}
	}
	return trials, endTime, nil
}

// ExperimentByID looks up an experiment.
func (db *PgDB) ExperimentByID(ctx context.Context, id int) (*model.Experiment, error) {
	var exp model.Experiment
	err := db.bun.NewSelect().Model(&exp).Where("id = ?", id).Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, errors.WithStack(ErrNotFound)
	case err != nil:
		return nil, errors.Wrapf(err, "error querying experiment %d", id)
	}
	return &exp, nil
}

// ExperimentState returns only the state of an experiment.
func (db *PgDB) ExperimentState(ctx context.Context, id int) (model.State, error) {
	var state model.State
	err := db.bun.NewSelect().
		Model((*model.Experiment)(nil)).
		Column("state").
		Where("id = ?", id).
		Scan(ctx, &state)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", errors.WithStack(ErrNotFound)
	case err != nil:
		return "", errors.Wrapf(err, "error querying state of experiment %d", id)
	}
	return state, nil
}
