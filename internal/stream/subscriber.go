package stream

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/determined-ai/hpcoords/internal/prom"
	"github.com/determined-ai/hpcoords/internal/snapshot"
	"github.com/determined-ai/hpcoords/pkg/check"
	"github.com/determined-ai/hpcoords/pkg/model"
	"github.com/determined-ai/hpcoords/pkg/syncx/queue"
)

// ErrClosed is returned by Select after Close.
var ErrClosed = errors.New("subscriber closed")

// errSuperseded is returned from event handlers of subscriptions that are no longer current, so
// the source stops delivering to them.
var errSuperseded = errors.New("subscription superseded")

// Update is a change to the current selection's data. Token is the selection generation the
// update belongs to; it only ever increases.
type Update struct {
	Token          uint64
	SubscriptionID uuid.UUID
	Key            model.SnapshotKey
	Snapshot       *snapshot.Snapshot
	Status         snapshot.Status
	Err            error
	// Done is set once the subscription's stream has ended, successfully or not.
	Done bool
}

type subscription struct {
	token uint64
	id    uuid.UUID
	key   model.SnapshotKey
	agg   *snapshot.Aggregator

	err      error
	done     bool
	terminal bool
}

func (s *subscription) update() Update {
	return Update{
		Token:          s.token,
		SubscriptionID: s.id,
		Key:            s.key,
		Snapshot:       s.agg.Last(),
		Status:         snapshot.StatusOf(s.agg, s.err, s.done, s.terminal),
		Err:            s.err,
		Done:           s.done || s.err != nil,
	}
}

// Subscriber owns at most one live subscription to a Source. Selecting a new key cancels the
// previous subscription, and any event it still delivers afterwards is discarded.
type Subscriber struct {
	source   Source
	label    string
	terminal TerminalCheck
	syslog   *log.Entry

	mu      sync.Mutex
	token   uint64
	cancel  context.CancelFunc
	current *subscription
	closed  bool

	updates *queue.Queue[Update]
	wg      sync.WaitGroup
}

// NewSubscriber returns a Subscriber reading from source. label names the source in metrics.
// terminal may be nil, in which case an ended stream without data is reported as waiting.
func NewSubscriber(source Source, label string, terminal TerminalCheck) *Subscriber {
	return &Subscriber{
		source:   source,
		label:    label,
		terminal: terminal,
		syslog:   log.WithField("component", "hp-snapshot-subscriber"),
		updates:  queue.New[Update](),
	}
}

// Select starts a subscription for key, canceling the current one. Updates of earlier selections
// that are still queued are dropped. It returns the token of the new selection.
func (s *Subscriber) Select(ctx context.Context, key model.SnapshotKey) (uint64, error) {
	if err := check.Validate(key); err != nil {
		return 0, errors.Wrap(err, "invalid selection")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.token++
	token := s.token
	s.updates.RemoveIf(func(u Update) bool { return u.Token < token })

	sub := &subscription{
		token: token,
		id:    uuid.New(),
		key:   key,
		agg:   snapshot.New(key.Metric),
	}
	s.current = sub
	subCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.updates.Put(sub.update())

	s.syslog.WithFields(log.Fields{
		"subscription-id": sub.id,
		"experiment-id":   key.ExperimentID,
		"metric":          key.Metric.String(),
		"batches":         key.BatchesProcessed,
	}).Debug("starting trials snapshot subscription")

	s.wg.Add(1)
	prom.ActiveSubscriptions.Inc()
	go func() {
		defer s.wg.Done()
		defer prom.ActiveSubscriptions.Dec()
		defer cancel()
		s.run(subCtx, sub)
	}()
	return token, nil
}

// Next blocks until the next update is available or ctx is done.
func (s *Subscriber) Next(ctx context.Context) (Update, error) {
	return s.updates.GetWithContext(ctx)
}

// TryNext returns a pending update without blocking.
func (s *Subscriber) TryNext() (Update, bool) {
	return s.updates.TryGet()
}

// Current returns the state of the current selection. ok is false before the first Select.
func (s *Subscriber) Current() (u Update, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Update{}, false
	}
	return s.current.update(), true
}

// Close cancels the current subscription and waits for every subscription goroutine to exit.
func (s *Subscriber) Close() {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Subscriber) run(ctx context.Context, sub *subscription) {
	err := s.source.Stream(ctx, sub.key, func(ev model.TrialsSnapshotEvent) error {
		return s.ingest(sub, ev)
	})

	syslog := s.syslog.WithField("subscription-id", sub.id)
	switch {
	case errors.Is(err, errSuperseded), ctx.Err() != nil:
		syslog.Debug("trials snapshot subscription canceled")
		return
	case err != nil:
		prom.StreamErrors.WithLabelValues(s.label).Inc()
		syslog.WithError(err).Warn("trials snapshot stream failed")
		s.publish(sub, func() { sub.err = err })
		return
	}

	terminal := false
	if s.terminal != nil {
		t, tErr := s.terminal(ctx, sub.key.ExperimentID)
		if tErr != nil {
			syslog.WithError(tErr).Warn("failed to check experiment state")
		}
		terminal = t
	}
	syslog.Debug("trials snapshot stream completed")
	s.publish(sub, func() {
		sub.done = true
		sub.terminal = terminal
	})
}

func (s *Subscriber) ingest(sub *subscription, ev model.TrialsSnapshotEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.token != s.token {
		prom.EventsIngested.WithLabelValues("superseded").Inc()
		return errSuperseded
	}

	if snap := sub.agg.Ingest(ev); snap == nil {
		prom.EventsIngested.WithLabelValues("skipped").Inc()
		return nil
	}
	prom.EventsIngested.WithLabelValues("applied").Inc()
	prom.TrialsIngested.Add(float64(len(ev.Trials)))
	s.updates.Put(sub.update())
	return nil
}

// publish applies mutate and queues the resulting update if sub is still current.
func (s *Subscriber) publish(sub *subscription, mutate func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.token != s.token {
		return
	}
	mutate()
	s.updates.Put(sub.update())
}
