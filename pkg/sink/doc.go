// Package sink provides the append-only Result Sink for the mapper package.
//
// A sink is a CSV file with one row per SinkRecord. Rows are only ever
// appended; each row is written with a single write call and synced before
// Append returns, so a crash can at worst leave one torn trailing line. Torn
// lines are ignored by Scan and sealed with a newline the next time the sink
// is opened.
//
// The same file doubles as the resume checkpoint: LoadExisting recovers the
// (input, hint) identities already present without keeping result payloads
// in memory.
package sink
