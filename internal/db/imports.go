package db

import (
	"context"
	"database/sql"
	"fmt"
)

// SilverCount returns the number of rows in silver.departures, or 0 before the
// first pipeline run.
func SilverCount(ctx context.Context, db *sql.DB) (int64, error) {
	ok, err := tableExists(ctx, db, "silver", "departures")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	var n int64
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM silver.departures`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count silver departures: %w", err)
	}
	return n, nil
}

// IngestAllowed reports whether another ingestion batch may run given the limit.
// A limit of 0 disables the check.
func IngestAllowed(ctx context.Context, db *sql.DB, limit int) (bool, int64, error) {
	n, err := SilverCount(ctx, db)
	if err != nil {
		return false, 0, err
	}
	if limit <= 0 {
		return true, n, nil
	}
	return n < int64(limit), n, nil
}
