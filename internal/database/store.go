// Package database connects the import engine to PostgreSQL: the pool,
// per-job sessions, the schema and the job history table.
package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/merchant-import/internal/config"
	"github.com/JonMunkholm/merchant-import/internal/core"
)

//go:embed schema.sql
var schema string

// Open creates a pool from cfg and verifies it with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// Migrate creates the tables the importers write to.
func Migrate(ctx context.Context, db core.DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Store hands each job one pooled connection.
type Store struct {
	pool             *pgxpool.Pool
	statementTimeout time.Duration
}

// NewStore creates a Store. A positive statementTimeout is applied to
// every batch transaction.
func NewStore(pool *pgxpool.Pool, statementTimeout time.Duration) *Store {
	return &Store{pool: pool, statementTimeout: statementTimeout}
}

// Acquire implements core.Store.
func (s *Store) Acquire(ctx context.Context) (core.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &session{conn: conn, statementTimeout: s.statementTimeout}, nil
}

type session struct {
	conn             *pgxpool.Conn
	statementTimeout time.Duration
}

func (s *session) Begin(ctx context.Context) (core.Tx, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if stmt := statementTimeoutSQL(s.statementTimeout); stmt != "" {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("set statement timeout: %w", err)
		}
	}
	return tx, nil
}

func (s *session) Release() {
	s.conn.Release()
}

// statementTimeoutSQL scopes the timeout to the current transaction.
// SET does not accept bind parameters.
func statementTimeoutSQL(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return fmt.Sprintf("SET LOCAL statement_timeout = %d", d.Milliseconds())
}
