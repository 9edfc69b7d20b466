package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/emilythestrangee/wikicomments/backend/internal/config"
	"github.com/emilythestrangee/wikicomments/backend/internal/models"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

// Service represents a service that interacts with a database.
type Service interface {
	Health() map[string]string

	// Migrate creates or updates the tables the service needs.
	Migrate() error

	// Close terminates the database connection.
	// It returns an error if the connection cannot be closed.
	Close() error
	GetDB() *gorm.DB
}

type service struct {
	db   *gorm.DB
	name string
}

// New opens a pooled connection described by conf.
func New(conf config.Postgres, verbose bool) (Service, error) {
	level := logger.Warn
	if verbose {
		level = logger.Info
	}

	// Configure GORM logger
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  verbose,
		},
	)

	return Open(conf.DSN(), conf.Name, conf.Pool, gormLogger)
}

// Open connects with an explicit DSN. Tests use it against throwaway containers.
func Open(dsn, name string, pool config.Pool, gormLogger logger.Interface) (Service, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DriverName: "pgx",
		DSN:        dsn,
	}), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	slog.Info("database connected", "db", name)

	return &service{db: db, name: name}, nil
}

func (s *service) GetDB() *gorm.DB {
	return s.db
}

// Migrate auto-migrates every model the service stores.
func (s *service) Migrate() error {
	err := s.db.AutoMigrate(
		&models.User{},
		&models.Page{},
		&models.MapData{},
		&models.Comment{},
		&models.CommentRevision{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("database migrations completed")
	return nil
}

// Health pings the database and reports pool statistics. "status" is "up"
// or "down".
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats := map[string]string{"db": s.name}

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		slog.Warn("database health check failed", "db", s.name, "error", err)
		return stats
	}

	dbStats := sqlDB.Stats()
	stats["status"] = "up"
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["max_open_connections"] = strconv.Itoa(dbStats.MaxOpenConnections)

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	slog.Info("disconnected from database", "db", s.name)
	return sqlDB.Close()
}
