package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"punktlich/internal/bronze"
	"punktlich/internal/db"
	"punktlich/internal/departures"
	"punktlich/internal/timetable"
)

var (
	ingestForce bool
	ingestRun   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch current departures into a new bronze file",
	Long: `Fetch the planned timetable for the hours around now and the recent changes
for the station, flatten them to departures and write one bronze Parquet file.

Ingestion is skipped once silver holds INGEST_LIMIT departures unless --force
is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		n, err := ingest(ctx, ingestForce)
		if err != nil {
			return err
		}
		if ingestRun && n > 0 {
			_, err = runPipeline(ctx)
		}
		return err
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "ignore the ingestion limit")
	ingestCmd.Flags().BoolVar(&ingestRun, "run", false, "rebuild silver and gold after writing")
	rootCmd.AddCommand(ingestCmd)
}

// ingest writes one bronze batch and returns the number of departures written.
func ingest(ctx context.Context, force bool) (int, error) {
	if !force {
		allowed, count, err := ingestAllowed(ctx)
		if err != nil {
			return 0, err
		}
		if !allowed {
			mcol.IngestSkipped.Inc()
			log.Printf("ingest: silver holds %d departures, limit %d reached; skipping", count, cfg.IngestLimit)
			return 0, nil
		}
	}

	client := timetable.NewClient(cfg.TimetableBaseURL, cfg.StationID, cfg.DBClientID, cfg.DBAPIKey,
		timetable.WithStationName(cfg.StationName),
		timetable.WithPause(cfg.PlanPause),
		timetable.WithLocation(cfg.Location),
	)
	if !client.Configured() {
		return 0, errors.New("DB_CLIENT_ID and DB_API_KEY must be set")
	}

	rows, err := client.Collect(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("collect departures: %w", err)
	}
	path, err := storeBatch(cfg.BronzeDir, cfg.HeartbeatLog, rows, time.Now())
	if err != nil {
		return 0, err
	}
	mcol.DeparturesIngested.Add(float64(len(rows)))

	if path == "" {
		log.Printf("ingest: no departures returned")
	} else {
		log.Printf("ingest: wrote %d departures to %s", len(rows), path)
	}
	return len(rows), nil
}

// storeBatch writes rows to bronze and records the fetch in the heartbeat log.
// The heartbeat is appended even when the bronze write fails.
func storeBatch(bronzeDir, heartbeatLog string, rows []departures.Bronze, at time.Time) (string, error) {
	path, err := bronze.NewWriter(bronzeDir).Write(rows)
	if hbErr := bronze.AppendHeartbeat(heartbeatLog, at, len(rows)); hbErr != nil {
		log.Printf("ingest: heartbeat: %v", hbErr)
	}
	return path, err
}

// ingestAllowed checks the limit against the current silver table. A missing
// database counts as empty.
func ingestAllowed(ctx context.Context) (bool, int64, error) {
	conn, err := db.OpenReadOnly(cfg.DuckDBPath)
	if errors.Is(err, db.ErrNoDatabase) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	defer conn.Close()
	return db.IngestAllowed(ctx, conn, cfg.IngestLimit)
}
