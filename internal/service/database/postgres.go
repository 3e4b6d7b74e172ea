// Package database manages the PostgreSQL connection: a database/sql pool
// via lib/pq with GORM layered over the same connection.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // PostgreSQL driver registration
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/rendoarsandi/content-boost-sub002/internal/config"
	"github.com/rendoarsandi/content-boost-sub002/internal/constants"
)

// PostgresService: owns the SQL pool and the GORM handle over it.
type PostgresService struct {
	db     *sql.DB
	gormDB *gorm.DB
	logger *slog.Logger
}

// NewPostgresService opens the pool, applies the pool tuning, pings, and
// initializes GORM over the existing connection.
func NewPostgresService(cfg config.PostgresConfig, logger *slog.Logger) (*PostgresService, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(constants.DatabaseConfig.MaxOpenConns)
	db.SetMaxIdleConns(constants.DatabaseConfig.MaxIdleConns)
	db.SetConnMaxLifetime(constants.DatabaseConfig.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseConfig.PingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info("postgres_connected",
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.String("database", cfg.Database),
	)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init gorm: %w", err)
	}

	return &PostgresService{db: db, gormDB: gormDB, logger: logger}, nil
}

// GORM returns the GORM handle.
func (s *PostgresService) GORM() *gorm.DB { return s.gormDB }

// SQL returns the raw pool for paths that bypass the ORM.
func (s *PostgresService) SQL() *sql.DB { return s.db }

// Close shuts the pool down.
func (s *PostgresService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close postgres failed: %w", err)
	}
	return nil
}
