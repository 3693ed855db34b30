package stream

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/determined-ai/hpcoords/pkg/model"
)

// temporary is implemented by source errors that know whether a retry can succeed.
type temporary interface {
	Temporary() bool
}

// Retrying wraps src so that a failed stream is reopened with the backoff policy returned by
// newBackOff. Errors returned by the event handler, errors that report themselves as not
// temporary and cancellation of ctx are never retried. Reopened streams replay from the start.
func Retrying(src Source, newBackOff func() backoff.BackOff) Source {
	return SourceFunc(func(
		ctx context.Context, key model.SnapshotKey, onEvent func(model.TrialsSnapshotEvent) error,
	) error {
		var handlerErr error
		op := func() error {
			err := src.Stream(ctx, key, func(ev model.TrialsSnapshotEvent) error {
				if err := onEvent(ev); err != nil {
					handlerErr = err
					return err
				}
				return nil
			})
			switch {
			case err == nil:
				return nil
			case handlerErr != nil:
				return backoff.Permanent(handlerErr)
			case ctx.Err() != nil:
				return backoff.Permanent(ctx.Err())
			case isPermanent(err):
				return backoff.Permanent(err)
			default:
				return err
			}
		}
		notify := func(err error, d time.Duration) {
			log.WithError(err).WithField("experiment-id", key.ExperimentID).
				Warnf("trials snapshot stream failed, reconnecting in %s", d)
		}
		err := backoff.RetryNotify(op, backoff.WithContext(newBackOff(), ctx), notify)
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	})
}

func isPermanent(err error) bool {
	var t temporary
	return errors.As(err, &t) && !t.Temporary()
}
