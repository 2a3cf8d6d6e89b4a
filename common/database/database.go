package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectPostgres   Dialect = "postgres"
	DialectSQLite     Dialect = "sqlite"
	DialectClickHouse Dialect = "clickhouse"
)

type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Username        string
	Password        string
	Database        string
}

type Database struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// New opens the relational store. postgres:// and postgresql:// DSNs go
// through the pgx driver; sqlite:// DSNs and bare file paths open a local
// SQLite file in WAL mode.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Database, error) {
	driver, dsn, dialect, err := resolveDSN(opts.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
	}

	logger.Info("database opened", zap.String("dialect", string(dialect)))

	return &Database{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}, nil
}

func resolveDSN(raw string) (driver, dsn string, dialect Dialect, err error) {
	switch {
	case raw == "":
		return "", "", "", fmt.Errorf("database DSN is empty")
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return "pgx", raw, DialectPostgres, nil
	default:
		path := strings.TrimPrefix(strings.TrimPrefix(raw, "sqlite://"), "file:")
		if i := strings.Index(path, "?"); i >= 0 {
			path = path[:i]
		}
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", "", "", fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return "sqlite", path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", DialectSQLite, nil
	}
}

func (d *Database) DB() *sql.DB {
	return d.db
}

func (d *Database) Dialect() Dialect {
	return d.dialect
}

func (d *Database) Rebind(query string) string {
	return Rebind(d.dialect, query)
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Rebind rewrites ? placeholders into $N for Postgres.
func Rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
