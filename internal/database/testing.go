package database

import (
	"fmt"
	"sync/atomic"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var memCounter atomic.Int64

// OpenMemory opens a migrated, private in-memory SQLite database.
// Tests and the local dev mode use it in place of MySQL.
//
// The pool holds one connection, so transactions never overlap. Tests that
// need real contention between transactions use OpenFile.
func OpenMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:somaai_mem_%d?mode=memory&cache=shared&_pragma=busy_timeout(5000)", memCounter.Add(1))
	db, err := openSQLite(dsn)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenFile opens a migrated SQLite database at path in WAL mode. Each
// goroutine may hold its own connection; writers wait on busy_timeout.
func OpenFile(path string) (*gorm.DB, error) {
	db, err := openSQLite("file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func openSQLite(dsn string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
}
