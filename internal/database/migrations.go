package database

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrations := []*gormigrate.Migration{}

	migrator := gormigrate.New(db, gormigrate.DefaultOptions, migrations)

	migrator.InitSchema(func(txn *gorm.DB) error {
		if txn.Dialector.Name() == "sqlite" {
			if err := txn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
				return fmt.Errorf("error enabling foreign keys: %w", err)
			}
		}

		err := txn.AutoMigrate(
			&Analysis{},
			&ChatSession{},
			&ChatHistory{},
		)
		if err != nil {
			return fmt.Errorf("error initializing database schema: %w", err)
		}

		return nil
	})

	return migrator
}
