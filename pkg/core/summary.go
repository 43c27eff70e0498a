package core

import "time"

// Summary counts what happened during a bulk run.
type Summary struct {
	RunID string
	// Planned is the number of items in the plan before skipping.
	Planned   int
	Skipped   int
	Succeeded int
	Failed    int
	// NotDispatched counts items never started because the run was aborted.
	NotDispatched int
	Elapsed       time.Duration
}

// Processed returns the number of items that reached a sink row in this run.
func (s Summary) Processed() int {
	return s.Succeeded + s.Failed
}
