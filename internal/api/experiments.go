package api

import (
	"context"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/determined-ai/hpcoords/internal/db"
	"github.com/determined-ai/hpcoords/pkg/model"
)

// Store is the database surface the API reads.
type Store interface {
	TrialsSnapshotStore
	ExperimentState(ctx context.Context, id int) (model.State, error)
}

// ExperimentCache caches experiment metadata. Configs never change after creation, so only the
// state is read through on every lookup.
type ExperimentCache struct {
	store Store
	cache *lru.Cache[int, *model.Experiment]
}

// NewExperimentCache returns a cache holding up to size experiments.
func NewExperimentCache(store Store, size int) (*ExperimentCache, error) {
	cache, err := lru.New[int, *model.Experiment](size)
	if err != nil {
		return nil, errors.Wrap(err, "creating LRU cache")
	}
	return &ExperimentCache{store: store, cache: cache}, nil
}

// Get returns the experiment with a current state.
func (c *ExperimentCache) Get(ctx context.Context, id int) (*model.Experiment, error) {
	if cached, ok := c.cache.Get(id); ok {
		state, err := c.store.ExperimentState(ctx, id)
		switch {
		case errors.Is(err, db.ErrNotFound):
			c.cache.Remove(id)
			return nil, AsErrNotFound("experiment %d not found", id)
		case err != nil:
			return nil, err
		}
		exp := *cached
		exp.State = state
		return &exp, nil
	}

	exp, err := c.store.ExperimentByID(ctx, id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return nil, AsErrNotFound("experiment %d not found", id)
	case err != nil:
		return nil, err
	}
	stored := *exp
	c.cache.Add(id, &stored)
	return exp, nil
}

// IsTerminal reports whether an experiment is in a terminal state.
func (c *ExperimentCache) IsTerminal(ctx context.Context, id int) (bool, error) {
	exp, err := c.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return exp.IsTerminal(), nil
}

// GetExperiment returns an experiment's metadata.
func (s *Server) GetExperiment(c echo.Context) error {
	args := struct {
		ExperimentID int `path:"experiment_id"`
	}{}
	if err := BindArgs(&args, c); err != nil {
		return err
	}
	exp, err := s.experiments.Get(c.Request().Context(), args.ExperimentID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, exp)
}
