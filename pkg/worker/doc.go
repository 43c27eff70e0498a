// Package worker provides the Worker type, the concurrency scheduler of a bulk run.
//
// This package includes:
//   - Worker: a pull-based pool that drives units through an Executor
//   - WorkerOption: configuration options for workers
//   - Report: per-run counters returned by Worker.Run
//
// Most users should import the root package github.com/jdziat/bulk-mapper
// which runs a Worker as part of Mapper.BulkQuery.
package worker
