package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"calendar-sync-backend/config"
	"calendar-sync-backend/internal/model"
)

// Init opens the PostgreSQL connection pool and runs migrations.
func Init(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Info("running database migrations")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("database initialization complete")
	return db, nil
}

// Migrate creates the rooms table and both event tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Room{}); err != nil {
		return fmt.Errorf("automigrate rooms failed: %w", err)
	}
	for _, table := range []string{model.TableCalendar, model.TableCalendarScrape} {
		if err := db.Table(table).AutoMigrate(&model.Event{}); err != nil {
			return fmt.Errorf("automigrate %s failed: %w", table, err)
		}
		// Index names are global, so they are derived from the table rather than the shared struct.
		ddl := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_room_code ON %s (room_code, start_at)", table, table)
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("index %s failed: %w", table, err)
		}
	}
	return nil
}
