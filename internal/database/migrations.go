package database

import (
	"log/slog"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrator := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "0",
			Migrate: func(txn *gorm.DB) error {
				return txn.AutoMigrate(&ChatSession{})
			},
			Rollback: func(txn *gorm.DB) error {
				return txn.Migrator().DropTable(&ChatSession{})
			},
		},
	})

	migrator.InitSchema(func(txn *gorm.DB) error {
		slog.Info("clean database detected, running full schema initialization")
		return txn.AutoMigrate(&ChatSession{})
	})

	return migrator
}
