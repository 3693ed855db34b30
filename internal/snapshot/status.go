package snapshot

// Status is the lifecycle state of one selection's data, as shown to the user.
type Status string

const (
	// StatusLoading means nothing has arrived yet and the stream is still open.
	StatusLoading Status = "loading"
	// StatusLoaded means at least one snapshot was produced.
	StatusLoaded Status = "loaded"
	// StatusWaiting means the stream ended without data but the experiment may still report some.
	StatusWaiting Status = "waiting"
	// StatusNoData means no data was ever observed and the experiment is terminal.
	StatusNoData Status = "no-data"
	// StatusError means the stream failed.
	StatusError Status = "error"
)

// StatusOf derives the user-visible status. A stream error wins over everything else; a loaded
// snapshot is shown even if the stream later completes.
func StatusOf(a *Aggregator, streamErr error, streamDone, experimentTerminal bool) Status {
	switch {
	case streamErr != nil:
		return StatusError
	case a != nil && a.Loaded():
		return StatusLoaded
	case experimentTerminal:
		return StatusNoData
	case streamDone:
		return StatusWaiting
	default:
		return StatusLoading
	}
}
