// Package pipeline rebuilds the silver and gold layers from the bronze files.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"punktlich/internal/bronze"
)

type Result struct {
	RunID       uuid.UUID     `json:"runId"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
	BronzeFiles int           `json:"bronzeFiles"`
	BronzeRows  int64         `json:"bronzeRows"`
	SilverRows  int64         `json:"silverRows"`
	GoldRows    int64         `json:"goldRows"`
}

type Runner struct {
	db        *sql.DB
	bronzeDir string
}

func NewRunner(db *sql.DB, bronzeDir string) *Runner {
	return &Runner{db: db, bronzeDir: bronzeDir}
}

// Run materialises silver and gold from every bronze file in one transaction.
// Either both tables are replaced or neither is.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	res := Result{RunID: uuid.New(), StartedAt: start.UTC()}

	files, err := bronze.List(r.bronzeDir)
	if err != nil {
		return res, err
	}
	res.BronzeFiles = len(files)
	log.Printf("pipeline run %s: %d bronze files in %s", res.RunID, len(files), r.bronzeDir)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return res, fmt.Errorf("create schema: %w", err)
		}
	}

	if len(files) > 0 {
		if err := tx.QueryRowContext(ctx, "SELECT count(*) FROM ("+bronzeSource(files)+")").Scan(&res.BronzeRows); err != nil {
			return res, fmt.Errorf("count bronze rows: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, silverSQL(files)); err != nil {
		return res, fmt.Errorf("build %s: %w", SilverTable, err)
	}
	if _, err := tx.ExecContext(ctx, goldSQL()); err != nil {
		return res, fmt.Errorf("build %s: %w", GoldTable, err)
	}

	if err := tx.QueryRowContext(ctx, countSQL(SilverTable)).Scan(&res.SilverRows); err != nil {
		return res, fmt.Errorf("count silver rows: %w", err)
	}
	if err := tx.QueryRowContext(ctx, countSQL(GoldTable)).Scan(&res.GoldRows); err != nil {
		return res, fmt.Errorf("count gold rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	res.Duration = time.Since(start)
	log.Printf("pipeline run %s: bronze=%d silver=%d gold=%d in %s",
		res.RunID, res.BronzeRows, res.SilverRows, res.GoldRows, res.Duration.Round(time.Millisecond))
	return res, nil
}

// BronzeDir returns the absolute bronze directory the runner reads.
func (r *Runner) BronzeDir() string {
	abs, err := filepath.Abs(r.bronzeDir)
	if err != nil {
		return r.bronzeDir
	}
	return abs
}
