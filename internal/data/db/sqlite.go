package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

// NewSQLiteService opens an embedded store at path, or a private in-memory
// database when path is ":memory:" or empty.
func NewSQLiteService(logg *logger.Logger, path string) (*Service, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = ":memory:"
	}
	dsn := path
	if path != ":memory:" && !strings.Contains(path, "?") {
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// one writer at a time; in-memory databases also vanish per connection
	sqlDB.SetMaxOpenConns(1)
	return &Service{db: db, log: logg.With("service", "SQLiteService"), driver: "sqlite"}, nil
}
