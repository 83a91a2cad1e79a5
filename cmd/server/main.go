package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/go-echeancier/internal/config"
	"github.com/diewo77/go-echeancier/internal/db"
	"github.com/diewo77/go-echeancier/internal/logger"
	"github.com/diewo77/go-echeancier/internal/metrics"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.App.LogLevel, cfg.App.Dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	dbConn, err := db.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if *migrateOnlyFlag {
		if err := migrateSchema(cfg, dbConn); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		log.Info("migrations completed")
		return
	}

	if *seedOnlyFlag {
		if err := db.Seed(dbConn); err != nil {
			log.Fatal("seeding failed", zap.Error(err))
		}
		log.Info("seeding completed")
		return
	}

	if cfg.App.Migrations {
		if err := migrateSchema(cfg, dbConn); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		log.Info("migrations completed")
	}
	if cfg.App.Seed {
		if err := db.Seed(dbConn); err != nil {
			log.Fatal("seeding failed", zap.Error(err))
		}
	}

	appHandler := NewApp(dbConn, cfg, log, metrics.NewSchedule())

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      logger.Middleware(log)(appHandler),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port), zap.Bool("dev", cfg.App.Dev))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	log.Info("server stopped gracefully")
}

// migrateSchema applies the versioned SQL migrations when SQL_MIGRATIONS is
// set on postgres, and gorm's AutoMigrate otherwise.
func migrateSchema(cfg *config.Config, dbConn *gorm.DB) error {
	if cfg.App.SQLMigrations && cfg.Database.Driver != "sqlite" {
		if err := db.RunSQLMigrations(cfg.Database.URL()); err != nil {
			return err
		}
		return db.CheckSchema(dbConn)
	}
	return db.Migrate(dbConn)
}
