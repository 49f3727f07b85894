// File: internal/database/database.go
package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/iyunix/go-relaychat/internal/chat"
	"github.com/iyunix/go-relaychat/internal/config"
	"github.com/iyunix/go-relaychat/internal/repository"
	"github.com/iyunix/go-relaychat/internal/store/pebblestore"
)

type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Open connects to the SQL store named by cfg.StoreDriver.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DatabasePath)
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("driver %q is not a SQL store", cfg.StoreDriver)
	}

	level := gormlogger.Warn
	if cfg.IsProduction() {
		level = gormlogger.Error
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.StoreDriver, err)
	}
	return db, nil
}

// OpenGateway opens the configured store, creating tables if missing, and
// returns it with a function that releases it.
func OpenGateway(cfg *config.Config, logger Logger) (chat.PersistenceGateway, func() error, error) {
	if cfg.StoreDriver == config.DriverPebble {
		store, err := pebblestore.Open(cfg.PebblePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	db, err := Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get underlying db: %w", err)
	}
	if err := repository.Migrate(db); err != nil {
		sqlDB.Close()
		return nil, nil, err
	}
	logger.Info("database ready", "driver", cfg.StoreDriver)
	return repository.NewGateway(db, logger), sqlDB.Close, nil
}
