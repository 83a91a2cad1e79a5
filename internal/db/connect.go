// Package db opens the database, applies migrations, seeds demo data and
// provides the quote store used by the schedule service.
package db

import (
	"fmt"
	"time"

	"github.com/diewo77/go-echeancier/internal/config"
	"github.com/diewo77/go-echeancier/internal/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connection retry settings. Postgres may still be starting when the
// container comes up.
var (
	connectAttempts = 10
	connectDelay    = 2 * time.Second
)

// Open connects to the configured database, retrying while it is not ready,
// and pings it once.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dialector, dsn, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	logLevel := gormlogger.Silent
	if cfg.Debug {
		logLevel = gormlogger.Info
	}
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(logLevel)}

	var db *gorm.DB
	for i := 0; i < connectAttempts; i++ {
		db, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		log.Warn("database not ready, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", connectAttempts),
			zap.Error(err),
		)
		time.Sleep(connectDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}

	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}
	log.Info("database connected",
		zap.String("driver", cfg.Driver),
		zap.String("dsn", logger.MaskDSN(dsn)),
	)
	return db, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, string, error) {
	switch cfg.Driver {
	case "postgres", "":
		dsn := NormalizeDSN(cfg.DSN())
		return postgres.Open(dsn), dsn, nil
	case "sqlite":
		dsn := cfg.DSN()
		return sqlite.Open(dsn), dsn, nil
	default:
		return nil, "", fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}
