package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	// Registers the "postgres" driver.
	_ "github.com/lib/pq"
	"github.com/ruteri/attestation-registry/interfaces"
)

const defaultPostgresTable = "attestation_kv"

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresBackend stores values in a single key/value table. Each Store is
// one upsert statement.
type PostgresBackend struct {
	db          *sql.DB
	table       string
	log         *slog.Logger
	locationURI string
}

// NewPostgresBackend opens a connection pool for dsn, checks it and creates
// the table if it doesn't exist.
func NewPostgresBackend(ctx context.Context, dsn, table string, log *slog.Logger) (*PostgresBackend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: postgres ping failed: %v", interfaces.ErrBackendUnavailable, err)
	}

	b, err := NewPostgresBackendFromDB(ctx, db, table, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// NewPostgresBackendFromDB wraps an existing pool and ensures the table exists.
func NewPostgresBackendFromDB(ctx context.Context, db *sql.DB, table string, log *slog.Logger) (*PostgresBackend, error) {
	if table == "" {
		table = defaultPostgresTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid postgres table name %q", table)
	}

	b := &PostgresBackend{
		db:          db,
		table:       table,
		log:         log,
		locationURI: "postgres://?table=" + table,
	}
	if err := b.migrate(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *PostgresBackend) migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, b.table)
	if _, err := b.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", b.table, err)
	}
	return nil
}

func (b *PostgresBackend) Fetch(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, b.table)
	err := b.db.QueryRowContext(ctx, query, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return data, nil
}

func (b *PostgresBackend) Store(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`, b.table)
	if _, err := b.db.ExecContext(ctx, query, key, data); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, b.table)
	if _, err := b.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (b *PostgresBackend) Available(ctx context.Context) bool {
	if err := b.db.PingContext(ctx); err != nil {
		b.log.Debug("Postgres backend unavailable", "err", err)
		return false
	}
	return true
}

func (b *PostgresBackend) Name() string {
	return fmt.Sprintf("postgres-%s", b.table)
}

func (b *PostgresBackend) LocationURI() string {
	return b.locationURI
}

// Close closes the connection pool.
func (b *PostgresBackend) Close() error {
	return b.db.Close()
}
