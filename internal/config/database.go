package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// ConnectDatabase opens the configured database (MySQL in prod, SQLite in dev)
func ConnectDatabase(cfg *Config, log *zap.Logger) (*gorm.DB, error) {
	var gormLogger logger.Interface
	if cfg.IsDev() {
		gormLogger = logger.Default.LogMode(logger.Warn)
	} else {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	dialector, err := buildDialector(cfg.Database)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Database.Driver == "sqlite" {
		// one writer at a time; readers go through WAL
		sqlDB.SetMaxOpenConns(4)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	DB = db

	log.Info("database connected",
		zap.String("driver", cfg.Database.Driver),
		zap.String("target", describe(cfg.Database)),
	)

	return db, nil
}

func buildDialector(d DatabaseConfig) (gorm.Dialector, error) {
	switch d.Driver {
	case "mysql":
		return mysql.Open(buildMySQLDSN(d)), nil
	case "sqlite":
		if dir := filepath.Dir(d.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return sqlite.Open(SQLiteDSN(d.SQLitePath)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", d.Driver)
	}
}

// buildMySQLDSN returns the MySQL connection string
func buildMySQLDSN(d DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.DBName,
	)
}

// SQLiteDSN builds a DSN whose transactions take the write lock on BEGIN,
// so two ledger transactions never interleave their read-check-write steps.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
}

func describe(d DatabaseConfig) string {
	if d.Driver == "sqlite" {
		return d.SQLitePath
	}
	return fmt.Sprintf("%s:%s/%s", d.Host, d.Port, d.DBName)
}

// CloseDatabase closes the database connection
func CloseDatabase() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// HealthCheck checks if database is healthy
func HealthCheck() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}
