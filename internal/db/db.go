package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrNoDatabase is returned by OpenReadOnly when the DuckDB file does not exist yet.
var ErrNoDatabase = fmt.Errorf("duckdb database not found")

// Open opens (creating if needed) the DuckDB file holding the silver and gold layers.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir %q: %w", dir, err)
		}
	}
	db, err := sql.Open("duckdb", DuckDSN(path, nil))
	if err != nil {
		return nil, err
	}
	return db, nil
}

// OpenReadOnly opens an existing DuckDB file without taking the write lock.
func OpenReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoDatabase, path)
		}
		return nil, err
	}
	return sql.Open("duckdb", DuckDSN(path, map[string]string{"access_mode": "read_only"}))
}

// OpenPostgres opens the Postgres database gold rows are mirrored to.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// tableExists reports whether schema.table is present.
func tableExists(ctx context.Context, db *sql.DB, schema, table string) (bool, error) {
	q := `SELECT count(*) FROM information_schema.tables
          WHERE table_schema = ? AND table_name = ?`
	var n int64
	if err := db.QueryRowContext(ctx, q, schema, table).Scan(&n); err != nil {
		return false, fmt.Errorf("introspect %s.%s: %w", schema, table, err)
	}
	return n > 0, nil
}
