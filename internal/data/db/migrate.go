package db

import (
	types "github.com/demandly/casefile-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Attorney{},
		&types.Case{},
		&types.Document{},
		&types.MedicalEvent{},
		&types.MedicalChronology{},
	)
}
