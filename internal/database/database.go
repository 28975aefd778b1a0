package database

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewInMemoryDatabase opens a private in-memory sqlite catalog and migrates
// it. Each call gets its own database; nothing outlives the process.
func NewInMemoryDatabase() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening session catalog: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("error accessing session catalog connection: %w", err)
	}
	// The in-memory database is dropped when its last connection closes, so
	// keep exactly one connection open for the life of the process.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	if err := GetMigrator(db).Migrate(); err != nil {
		return nil, fmt.Errorf("error migrating session catalog: %w", err)
	}

	return db, nil
}
