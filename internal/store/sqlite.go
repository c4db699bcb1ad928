package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dann1kid/faf-ddos-incidents/internal/store/schema"
)

// Config holds database settings
type Config struct {
	// Path is the SQLite database file; ":memory:" opens a private in-memory database
	Path string
	// MaxOpenConns bounds the connection pool. SQLite allows one writer, so 1 is the usual value.
	MaxOpenConns int
}

type sqliteStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open opens (creating if needed) the SQLite database with foreign keys enforced
func Open(ctx context.Context, cfg Config, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Path == "" {
		return nil, errors.New("database path is empty")
	}
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn(cfg.Path)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 || cfg.Path == ":memory:" {
		// Every connection to :memory: is a separate database.
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &sqliteStore{db: db, log: log}, nil
}

// NewSQLiteStore wraps an already opened gorm handle
func NewSQLiteStore(db *gorm.DB, log *zap.Logger) Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &sqliteStore{db: db, log: log}
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (s *sqliteStore) DB() *gorm.DB {
	return s.db
}

func (s *sqliteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates or updates every table
func (s *sqliteStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(schema.Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Reset drops every table and migrates again
func (s *sqliteStore) Reset(ctx context.Context) error {
	models := schema.Models()
	m := s.db.WithContext(ctx).Migrator()
	for i := len(models) - 1; i >= 0; i-- {
		if err := m.DropTable(models[i]); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	return s.Migrate(ctx)
}
