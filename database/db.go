package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"
	_ "github.com/jinzhu/gorm/dialects/postgres"

	"github.com/ken-eddy/simplesales/config"
)

// Connect opens the relational store selected by cfg.DBDriver and verifies it
// answers within five seconds.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
	gorm.NowFunc = func() time.Time { return time.Now().UTC() }

	db, err := gorm.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	sqlDB := db.DB()
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.LogMode(cfg.DBDebug)
	logger.Info("connected to database", "driver", cfg.DBDriver, "host", cfg.DBHost, "name", cfg.DBName)
	return db, nil
}

// Ping checks the store is reachable; used by the health endpoint.
func Ping(ctx context.Context, db *gorm.DB) error {
	return db.DB().PingContext(ctx)
}
