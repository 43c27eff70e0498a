package core

import (
	"time"
)

// Status is the persisted state of a sink row.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// WorkItem is one input to resolve, optionally paired with a hint.
type WorkItem struct {
	Input string
	Hint  string
}

// Identity is the resume key of a WorkItem.
type Identity struct {
	Input string
	Hint  string
}

// ID returns the identity of the item. Items that differ only in hint are distinct.
func (w WorkItem) ID() Identity {
	return Identity{Input: w.Input, Hint: w.Hint}
}

// Set is a collection of identities already present in a sink.
type Set map[Identity]struct{}

// Has reports whether id is in the set.
func (s Set) Has(id Identity) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s Set) Add(id Identity) {
	s[id] = struct{}{}
}

// Record is the structured mapping result returned by the remote service.
type Record struct {
	OriginalInput      string   `json:"Original Input"`
	CompanyName        string   `json:"Company Name"`
	Aliases            []string `json:"Aliases"`
	ConfidenceLevel    string   `json:"Confidence Level"`
	Confidence         float64  `json:"Confidence"`
	Ticker             string   `json:"Ticker"`
	Exchange           string   `json:"Exchange"`
	MajorityOwner      string   `json:"Majority Owner"`
	FIGI               string   `json:"FIGI"`
	RelatedEntities    []string `json:"Related Entities"`
	AlternativeMatches []string `json:"Alternative Company Matches"`
	Websites           []string `json:"Websites"`
}

// Outcome is the final result of one WorkItem: exactly one of Record or Err is set.
type Outcome struct {
	Item     WorkItem
	Record   *Record
	Err      *QueryError
	Attempts int
	// Interrupted marks a retryable failure whose retries were cut short by
	// cancellation. It is not final and must not be persisted.
	Interrupted bool
}

// Success builds a successful outcome.
func Success(item WorkItem, rec *Record) Outcome {
	return Outcome{Item: item, Record: rec}
}

// Failure builds a failed outcome.
func Failure(item WorkItem, err *QueryError) Outcome {
	return Outcome{Item: item, Err: err}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Status returns the sink status for the outcome.
func (o Outcome) Status() Status {
	if o.OK() {
		return StatusSuccess
	}
	return StatusFailed
}

// SinkRecord is the durable unit appended to a sink.
type SinkRecord struct {
	Outcome   Outcome
	Timestamp time.Time
}

// RunPlan is the work of a single run, derived once from the inputs and the sink.
type RunPlan struct {
	ToProcess []WorkItem
	Skipped   []WorkItem
}

// Unit is a batch of items dispatched in one request.
type Unit struct {
	Index int
	Items []WorkItem
}
