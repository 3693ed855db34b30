package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/determined-ai/hpcoords/internal/trials"
)

// maxPeriod caps requested poll intervals when Options.MaxPeriod is unset.
const maxPeriod = 24 * time.Hour

// TrialsSnapshotStore is the database surface the snapshot poller reads.
type TrialsSnapshotStore = trials.Store

// Options configure the API handlers.
type Options struct {
	// Period is the default interval between snapshot polls.
	Period time.Duration
	// BatchesMargin is the default batch window half-width.
	BatchesMargin int
	// MaxPeriod caps the poll interval clients may request.
	MaxPeriod time.Duration
	// CacheSize is the number of experiments kept in the metadata cache.
	CacheSize int
	Clock     clockwork.Clock
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Period:        trials.DefaultPeriod,
		BatchesMargin: trials.DefaultBatchesMargin,
		MaxPeriod:     time.Minute,
		CacheSize:     256,
		Clock:         clockwork.NewRealClock(),
	}
}

// Server serves trials snapshots and the interactive parallel coordinates protocol.
type Server struct {
	store       Store
	opts        Options
	experiments *ExperimentCache
	upgrader    websocket.Upgrader
}

// NewServer returns a Server reading from store.
func NewServer(store Store, opts Options) (*Server, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	experiments, err := NewExperimentCache(store, opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Server{
		store:       store,
		opts:        opts,
		experiments: experiments,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

// Register adds the API routes to e.
func (s *Server) Register(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/experiments/:experiment_id", s.GetExperiment)
	g.GET("/experiments/:experiment_id/trials-snapshot", s.TrialsSnapshot)
	g.GET("/experiments/:experiment_id/hp-coords", s.HPCoords)
	g.POST("/hp-coords/filter", s.FilterSnapshot)
}

func (s *Server) poller(batchesMargin, periodSeconds *int) *trials.Poller {
	margin := s.opts.BatchesMargin
	if batchesMargin != nil {
		margin = *batchesMargin
	}
	return trials.NewPoller(s.store,
		trials.WithClock(s.opts.Clock),
		trials.WithPeriod(s.period(periodSeconds)),
		trials.WithBatchesMargin(margin),
	)
}

// period returns the poll interval for a requested number of seconds, capped at MaxPeriod (or
// maxPeriod when unset) before converting so large requests cannot overflow.
func (s *Server) period(periodSeconds *int) time.Duration {
	if periodSeconds == nil || *periodSeconds <= 0 {
		return s.opts.Period
	}
	limit := s.opts.MaxPeriod
	if limit <= 0 {
		limit = maxPeriod
	}
	if int64(*periodSeconds) > int64(limit/time.Second) {
		return limit
	}
	return time.Duration(*periodSeconds) * time.Second
}
