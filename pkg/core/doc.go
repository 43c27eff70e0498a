// Package core provides the fundamental types and interfaces for the mapper package.
//
// This package contains:
//   - WorkItem, Outcome and Record data models
//   - SinkRecord and RunPlan, the durable and per-run views of work
//   - Event types for run monitoring
//   - Error kinds and the QueryError type used to classify failures
//
// Most users should import the root package github.com/jdziat/bulk-mapper
// instead of this package directly.
package core
