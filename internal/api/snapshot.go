package api

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/determined-ai/hpcoords/internal/colorscale"
	"github.com/determined-ai/hpcoords/internal/filter"
	"github.com/determined-ai/hpcoords/internal/prom"
	"github.com/determined-ai/hpcoords/internal/snapshot"
	"github.com/determined-ai/hpcoords/pkg/check"
	"github.com/determined-ai/hpcoords/pkg/model"
)

const ndjsonContentType = "application/x-ndjson"

type trialsSnapshotArgs struct {
	ExperimentID     int              `path:"experiment_id"`
	MetricName       string           `query:"metric_name"`
	MetricType       model.MetricType `query:"metric_type"`
	BatchesProcessed int              `query:"batches_processed"`
	BatchesMargin    *int             `query:"batches_margin"`
	PeriodSeconds    *int             `query:"period_seconds"`
}

func (a trialsSnapshotArgs) key() model.SnapshotKey {
	return model.SnapshotKey{
		ExperimentID:     a.ExperimentID,
		BatchesProcessed: a.BatchesProcessed,
		Metric:           model.MetricName{Name: a.MetricName, Type: a.MetricType},
	}
}

type streamError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type streamFrame struct {
	Result *model.TrialsSnapshotEvent `json:"result,omitempty"`
	Error  *streamError               `json:"error,omitempty"`
}

// TrialsSnapshot streams a trials snapshot as newline-delimited JSON frames until the experiment
// is terminal and no new rows remain, or the client goes away.
func (s *Server) TrialsSnapshot(c echo.Context) error {
	var args trialsSnapshotArgs
	if err := BindArgs(&args, c); err != nil {
		return err
	}
	key := args.key()
	if err := check.Validate(key); err != nil {
		return AsValidationError("%s", err)
	}
	if args.BatchesMargin != nil && *args.BatchesMargin < 0 {
		return AsValidationError("batches_margin must be >= 0")
	}

	ctx := c.Request().Context()
	if _, err := s.experiments.Get(ctx, key.ExperimentID); err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, ndjsonContentType)
	res.WriteHeader(http.StatusOK)
	res.Flush()
	enc := json.NewEncoder(res)

	err := s.poller(args.BatchesMargin, args.PeriodSeconds).Stream(ctx, key,
		func(ev model.TrialsSnapshotEvent) error {
			if err := enc.Encode(streamFrame{Result: &ev}); err != nil {
				return errors.Wrap(err, "writing trials snapshot frame")
			}
			res.Flush()
			return nil
		})
	if err == nil || ctx.Err() != nil {
		return nil
	}

	prom.StreamErrors.WithLabelValues("ndjson").Inc()
	log.WithError(err).WithField("experiment-id", key.ExperimentID).
		Error("trials snapshot stream failed")
	frame := streamFrame{Error: &streamError{Code: http.StatusInternalServerError, Message: err.Error()}}
	if encErr := enc.Encode(frame); encErr != nil {
		log.WithError(encErr).Debug("failed to send stream error frame")
	}
	return nil
}

// FilterRequest asks for a snapshot to be filtered and colored without a subscription.
type FilterRequest struct {
	Snapshot        *snapshot.Snapshot `json:"snapshot"`
	Constraints     filter.Constraints `json:"constraints"`
	SmallerIsBetter *bool              `json:"smaller_is_better,omitempty"`
}

// Validate implements the check.Validatable interface.
func (r FilterRequest) Validate() []error {
	if r.Snapshot == nil {
		return []error{errors.New("snapshot is required")}
	}
	var errs []error
	n := len(r.Snapshot.TrialIDs)
	for name, col := range r.Snapshot.Columns {
		if len(col) != n {
			errs = append(errs, errors.Errorf("column %q has %d values for %d trials", name, len(col), n))
		}
	}
	if len(r.Snapshot.MetricValues) != 0 && len(r.Snapshot.MetricValues) != n {
		errs = append(errs, errors.Errorf("%d metric values for %d trials", len(r.Snapshot.MetricValues), n))
	}
	return errs
}

// FilterResponse is the outcome of a FilterRequest.
type FilterResponse struct {
	Filter  filter.Result      `json:"filter"`
	Visible int                `json:"visible"`
	Colors  []colorscale.Color `json:"colors"`
}

// FilterSnapshot applies constraints and the color scale to a posted snapshot.
func (s *Server) FilterSnapshot(c echo.Context) error {
	var req FilterRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return AsValidationError("invalid filter request: %s", err)
	}
	if err := check.Validate(req); err != nil {
		return AsValidationError("%s", err)
	}

	result := filter.Filter(req.Snapshot, req.Constraints)
	return c.JSON(http.StatusOK, FilterResponse{
		Filter:  result,
		Visible: result.Count(),
		Colors: colorscale.Build(req.Snapshot.MetricRange, req.SmallerIsBetter).
			Map(req.Snapshot.MetricValues),
	})
}
