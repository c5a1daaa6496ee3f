// Package database opens the relational backends (PostgreSQL, SQLite) through
// GORM and brings their schema up to date.
package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/config"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/repository"
	"github.com/quocanhngo/talkhub/migrations"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func gormConfig(env string) *gorm.Config {
	gormLogger := gormlogger.Default.LogMode(gormlogger.Info)
	if env == "production" {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Warn)
	}
	return &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// Open connects to the driver named in cfg. Mongo is not handled here.
func Open(cfg config.DBConfig, env string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig(env))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == "sqlite" {
		// sqlite allows a single writer
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate applies the embedded SQL migrations on PostgreSQL, falling back to
// AutoMigrate when they cannot run. SQLite always uses AutoMigrate.
func Migrate(db *gorm.DB, cfg config.DBConfig) error {
	if cfg.Driver == "postgres" {
		err := migrations.Run(cfg.URL())
		if err == nil {
			return nil
		}
		logger.Warnf("Migration warning: %v", err)
		logger.Info("Falling back to GORM AutoMigrate")
	}
	if err := db.AutoMigrate(repository.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// OpenInMemory returns a private, migrated in-memory SQLite database. Used by
// tests and the seeder's dry-run mode.
func OpenInMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(repository.Models()...); err != nil {
		return nil, err
	}
	return db, nil
}
