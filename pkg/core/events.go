package core

import "time"

// Event is the interface for all run events.
type Event interface {
	eventMarker()
}

// ItemStarted is emitted when a unit is handed to a worker.
type ItemStarted struct {
	RunID     string
	Item      WorkItem
	Timestamp time.Time
}

func (*ItemStarted) eventMarker() {}

// ItemRetrying is emitted before another attempt of a failed item.
type ItemRetrying struct {
	RunID     string
	Item      WorkItem
	Attempt   int
	Error     error
	Backoff   time.Duration
	Timestamp time.Time
}

func (*ItemRetrying) eventMarker() {}

// ItemCompleted is emitted when an item was mapped and persisted.
type ItemCompleted struct {
	RunID     string
	Outcome   Outcome
	Duration  time.Duration
	Timestamp time.Time
}

func (*ItemCompleted) eventMarker() {}

// ItemFailed is emitted when an item failed permanently and the failure was persisted.
type ItemFailed struct {
	RunID     string
	Outcome   Outcome
	Timestamp time.Time
}

func (*ItemFailed) eventMarker() {}

// RunFinished is emitted once per bulk run.
type RunFinished struct {
	RunID     string
	Summary   Summary
	Error     error
	Timestamp time.Time
}

func (*RunFinished) eventMarker() {}
