package model

import (
	"github.com/uptrace/bun"
	"gopkg.in/guregu/null.v3"
)

// State is the run state of an experiment.
type State string

const (
	// ActiveState constant.
	ActiveState State = "ACTIVE"
	// CanceledState constant.
	CanceledState State = "CANCELED"
	// CompletedState constant.
	CompletedState State = "COMPLETED"
	// ErrorState constant.
	ErrorState State = "ERROR"
	// PausedState constant.
	PausedState State = "PAUSED"
	// StoppingCanceledState constant.
	StoppingCanceledState State = "STOPPING_CANCELED"
	// StoppingCompletedState constant.
	StoppingCompletedState State = "STOPPING_COMPLETED"
	// StoppingErrorState constant.
	StoppingErrorState State = "STOPPING_ERROR"
	// DeletingState constant.
	DeletingState State = "DELETING"
	// DeleteFailedState constant.
	DeleteFailedState State = "DELETE_ERROR"
	// DeletedState constant.
	DeletedState State = "DELETED"
)

// TerminalStates are the states after which an experiment reports no more metrics.
var TerminalStates = map[State]bool{
	CanceledState:     true,
	CompletedState:    true,
	ErrorState:        true,
	DeletingState:     true,
	DeleteFailedState: true,
	DeletedState:      true,
}

// SearcherConfig is the part of the searcher configuration that ranks trials.
type SearcherConfig struct {
	Name            string `json:"name"`
	Metric          string `json:"metric"`
	SmallerIsBetter *bool  `json:"smaller_is_better,omitempty"`
}

// ExperimentConfig is the read-only subset of an experiment config this service consumes.
type ExperimentConfig struct {
	Name            string          `json:"name"`
	Hyperparameters Hyperparameters `json:"hyperparameters"`
	Searcher        SearcherConfig  `json:"searcher"`
}

// Experiment is an experiment row.
type Experiment struct {
	bun.BaseModel `bun:"table:experiments"`

	ID      int              `bun:"id,pk" json:"id"`
	State   State            `bun:"state" json:"state"`
	Config  ExperimentConfig `bun:"config,type:jsonb" json:"config"`
	EndTime null.Time        `bun:"end_time" json:"end_time"`
}

// IsTerminal reports whether the experiment can no longer produce new data.
func (e Experiment) IsTerminal() bool {
	return TerminalStates[e.State]
}

// SmallerIsBetter returns the searcher's ordering for metric. It is only known for the
// validation metric the searcher optimizes; for any other metric it returns nil.
func (e Experiment) SmallerIsBetter(metric MetricName) *bool {
	if metric.Type != ValidationMetricType || metric.Name != e.Config.Searcher.Metric {
		return nil
	}
	if e.Config.Searcher.SmallerIsBetter == nil {
		// The searcher defaults to minimizing its metric.
		t := true
		return &t
	}
	v := *e.Config.Searcher.SmallerIsBetter
	return &v
}
