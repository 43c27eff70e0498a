// Package storage provides the run journal: a durable history of bulk runs.
//
// This package includes:
//   - GormJournal: a GORM-based journal supporting SQLite and PostgreSQL
//   - RunRecord: the persisted row for one run
//   - Open: opens a database from a DSN, picking the driver from its form
//
// The journal only records run metadata. Mapping results live in the
// output file, which stays the source of truth for resume.
//
// Most users should import the root package github.com/jdziat/bulk-mapper
// and pass a journal with mapper.WithJournal.
package storage
