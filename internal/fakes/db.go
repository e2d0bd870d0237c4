package fakes

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/grasp-labs/ds-keywrap-go-sdk/keywrap"
)

// NewDB opens a sqlite database at dsn with the envelope table migrated.
func NewDB(t *testing.T, dsn string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&keywrap.EnvelopeRecord{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// SharedMemoryDSN names an in-memory sqlite database that every connection
// opened with the same name shares.
func SharedMemoryDSN(t *testing.T) string {
	return "file:" + t.Name() + "?mode=memory&cache=shared"
}
