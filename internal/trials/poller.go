package trials

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/determined-ai/hpcoords/pkg/mmath"
	"github.com/determined-ai/hpcoords/pkg/model"
)

const (
	// DefaultPeriod is how often the database is polled for new snapshot rows.
	DefaultPeriod = 5 * time.Second
	// DefaultBatchesMargin is how far from the selected batch a row may be and still be included.
	DefaultBatchesMargin = 0
)

// Store is the subset of the database the poller reads.
type Store interface {
	TrialsSnapshot(
		ctx context.Context, experimentID int, minBatches int, maxBatches int,
		metric model.MetricName, hps model.Hyperparameters, startTime time.Time,
	) ([]model.TrialRecord, time.Time, error)
	ExperimentByID(ctx context.Context, id int) (*model.Experiment, error)
}

// Poller streams trials snapshots out of the database by polling it periodically. Each poll only
// returns rows that ended after the newest row seen so far.
type Poller struct {
	store         Store
	clock         clockwork.Clock
	period        time.Duration
	batchesMargin int
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock sets the clock used to wait between polls.
func WithClock(c clockwork.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithPeriod sets the polling period.
func WithPeriod(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.period = d
		}
	}
}

// WithBatchesMargin sets how many batches on either side of the selected one are included.
func WithBatchesMargin(m int) Option {
	return func(p *Poller) {
		if m >= 0 {
			p.batchesMargin = m
		}
	}
}

// NewPoller returns a Poller over store.
func NewPoller(store Store, opts ...Option) *Poller {
	p := &Poller{
		store:         store,
		clock:         clockwork.NewRealClock(),
		period:        DefaultPeriod,
		batchesMargin: DefaultBatchesMargin,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Stream implements stream.Source. It returns nil once the experiment is terminal and a poll
// found nothing new.
func (p *Poller) Stream(
	ctx context.Context, key model.SnapshotKey, onEvent func(model.TrialsSnapshotEvent) error,
) error {
	syslog := log.WithFields(log.Fields{
		"component":     "trials-poller",
		"experiment-id": key.ExperimentID,
		"metric":        key.Metric.String(),
	})

	exp, err := p.store.ExperimentByID(ctx, key.ExperimentID)
	if err != nil {
		return err
	}
	hps := exp.Config.Hyperparameters

	minBatches := mmath.Max(0, key.BatchesProcessed-p.batchesMargin)
	maxBatches := key.BatchesProcessed + p.batchesMargin

	ticker := p.clock.NewTicker(p.period)
	defer ticker.Stop()

	var cursor time.Time
	for {
		trials, endTime, err := p.store.TrialsSnapshot(
			ctx, key.ExperimentID, minBatches, maxBatches, key.Metric, hps, cursor)
		if err != nil {
			return err
		}
		cursor = endTime

		if len(trials) > 0 {
			syslog.Tracef("sending %d new trial records", len(trials))
			if err := onEvent(model.TrialsSnapshotEvent{Trials: trials}); err != nil {
				return err
			}
		} else {
			// The stream only ends on a poll that found nothing new.
			exp, err := p.store.ExperimentByID(ctx, key.ExperimentID)
			if err != nil {
				return errors.Wrap(err, "checking experiment state")
			}
			if exp.IsTerminal() {
				syslog.Debugf("experiment is %s, ending trials snapshot stream", exp.State)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

// IsTerminal reports whether an experiment is in a terminal state. It matches stream.TerminalCheck.
func IsTerminal(store Store) func(ctx context.Context, experimentID int) (bool, error) {
	return func(ctx context.Context, experimentID int) (bool, error) {
		exp, err := store.ExperimentByID(ctx, experimentID)
		if err != nil {
			return false, err
		}
		return exp.IsTerminal(), nil
	}
}
