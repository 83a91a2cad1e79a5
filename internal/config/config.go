// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string // postgres or sqlite
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// RawDSN overrides the individual postgres settings when set.
	RawDSN     string
	SQLitePath string
	Debug      bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev            bool
	Migrations     bool
	SQLMigrations  bool
	Seed           bool
	LogLevel       string
	DefaultLang    string
	DefaultVATRate float64
}

// DSN returns the connection string for the configured driver. Postgres DSNs
// use the key=value format unless DATABASE_DSN supplied a URL.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.SQLitePath
	}
	if d.RawDSN != "" {
		return d.RawDSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format, as expected by
// golang-migrate.
func (d DatabaseConfig) URL() string {
	if d.RawDSN != "" {
		return d.RawDSN
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "echeancier"),
			Password:   getEnv("DB_PASSWORD", "echeancier123"),
			DBName:     getEnv("DB_NAME", "echeancier"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			RawDSN:     getEnv("DATABASE_DSN", ""),
			SQLitePath: getEnv("SQLITE_PATH", "echeancier.db"),
			Debug:      getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:            getEnvBool("DEV", true),
			Migrations:     getEnvBool("MIGRATIONS", false),
			SQLMigrations:  getEnvBool("SQL_MIGRATIONS", false),
			Seed:           getEnvBool("DB_SEED", false),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			DefaultLang:    getEnv("DEFAULT_LANG", "fr"),
			DefaultVATRate: getEnvFloat("DEFAULT_VAT_RATE", 20),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
