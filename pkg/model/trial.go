package model

import (
	"github.com/pkg/errors"

	"github.com/determined-ai/hpcoords/pkg/check"
)

// TrialRecord is one trial's hyperparameters and the selected metric at a point of progress.
type TrialRecord struct {
	TrialID          int               `json:"trialId"`
	Metric           Float             `json:"metric"`
	Hparams          map[string]Scalar `json:"hparams"`
	BatchesProcessed int               `json:"batchesProcessed"`
}

// TrialsSnapshotEvent is one delivery of a trials snapshot stream. A nil Trials means the
// payload had no trial array at all, which consumers skip.
type TrialsSnapshotEvent struct {
	Trials []TrialRecord `json:"trials"`
}

// SnapshotKey identifies the selection a snapshot subscription serves.
type SnapshotKey struct {
	ExperimentID     int        `json:"experiment_id"`
	BatchesProcessed int        `json:"batches_processed"`
	Metric           MetricName `json:"metric"`
}

// Validate implements the check.Validatable interface.
func (k SnapshotKey) Validate() []error {
	errs := []error{
		check.GreaterThan(k.ExperimentID, 0, "experiment id must be positive"),
		check.GreaterThanOrEqualTo(k.BatchesProcessed, 0, "batches processed must be >= 0"),
	}
	for _, err := range k.Metric.Validate() {
		errs = append(errs, errors.Wrap(err, "metric"))
	}
	return errs
}
