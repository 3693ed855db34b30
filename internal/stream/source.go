package stream

import (
	"context"

	"github.com/determined-ai/hpcoords/pkg/model"
)

// Source produces trials snapshot events for a selection. Stream calls onEvent sequentially, in
// arrival order, and returns when the stream completes, ctx is canceled or onEvent returns an
// error. A nil return means the upstream finished normally.
type Source interface {
	Stream(
		ctx context.Context, key model.SnapshotKey, onEvent func(model.TrialsSnapshotEvent) error,
	) error
}

// SourceFunc adapts a function to a Source.
type SourceFunc func(
	ctx context.Context, key model.SnapshotKey, onEvent func(model.TrialsSnapshotEvent) error,
) error

// Stream implements Source.
func (f SourceFunc) Stream(
	ctx context.Context, key model.SnapshotKey, onEvent func(model.TrialsSnapshotEvent) error,
) error {
	return f(ctx, key, onEvent)
}

// TerminalCheck reports whether an experiment has reached a terminal state.
type TerminalCheck func(ctx context.Context, experimentID int) (bool, error)
