package mapper

import (
	"github.com/jdziat/bulk-mapper/pkg/storage"
)

// RunRecord is one journaled bulk run.
type RunRecord = storage.RunRecord

// GormJournal is the GORM-backed run journal.
type GormJournal = storage.GormJournal

// OpenJournal opens a run journal. PostgreSQL URLs use the postgres driver;
// anything else is a SQLite file path. The schema is migrated by the caller
// with Migrate.
func OpenJournal(dsn string, opts ...storage.PoolOption) (*GormJournal, error) {
	return storage.Open(dsn, opts...)
}
