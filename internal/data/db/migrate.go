package db

import (
	"gorm.io/gorm"

	types "github.com/yungbote/finpulse-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.RawProfileRow{},
		&types.FinanceProfileRow{},
		&types.SuggestionEntryRow{},
	)
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...", "driver", s.driver)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
