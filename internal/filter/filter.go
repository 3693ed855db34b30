package filter

import (
	"sort"

	"github.com/determined-ai/hpcoords/internal/snapshot"
	"github.com/determined-ai/hpcoords/pkg/model"
)

// Result maps trial ids to whether they satisfy every active constraint.
type Result map[int]bool

// Passes reports whether the trial is visible. Trials the result has no entry for have not been
// seen yet and are never excluded.
func (r Result) Passes(trialID int) bool {
	ok, known := r[trialID]
	return !known || ok
}

// Count is the number of known trials that pass.
func (r Result) Count() int {
	n := 0
	for _, ok := range r {
		if ok {
			n++
		}
	}
	return n
}

// Filter evaluates constraints against a snapshot. Every trial starts out included; each
// constrained dimension can only exclude more trials. Dimensions the snapshot has no column for
// are ignored.
func Filter(s *snapshot.Snapshot, constraints Constraints) Result {
	result := make(Result, s.Len())
	if s == nil {
		return result
	}
	for _, id := range s.TrialIDs {
		result[id] = true
	}

	for name, c := range constraints {
		if c == nil {
			continue
		}
		values, ok := s.Column(name)
		if !ok {
			continue
		}
		for i, v := range values {
			if !c.Admits(v) {
				result[s.TrialIDs[i]] = false
			}
		}
	}
	return result
}

func sortScalars(vals []model.Scalar) {
	sort.Slice(vals, func(i, j int) bool { return vals[i].Less(vals[j]) })
}
