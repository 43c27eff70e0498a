// Package schedule provides schedules for recurring bulk runs.
//
// This package includes:
//   - Schedule interface
//   - Every() for fixed-interval schedules
//   - Daily() for a run at a specific time each day
//   - Cron() for cron expressions and descriptors such as "@hourly"
//   - Loop() which calls a function each time a schedule fires
//
// Re-running a bulk run against the same output file only processes inputs
// that have no row yet, so a schedule that fires often stays cheap.
package schedule
