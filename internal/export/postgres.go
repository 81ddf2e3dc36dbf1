// Package export mirrors the gold layer into Postgres for downstream consumers.
package export

import (
	"context"
	"database/sql"
	"fmt"

	"punktlich/internal/departures"
)

const createGold = `CREATE TABLE IF NOT EXISTS agg_punctuality (
    service_type      TEXT NOT NULL,
    scheduled_hour    INTEGER,
    day_of_week       TEXT,
    total_trains      BIGINT NOT NULL,
    delayed_trains    BIGINT NOT NULL,
    avg_delay_minutes DOUBLE PRECISION NOT NULL,
    punctuality_rate  DOUBLE PRECISION NOT NULL,
    delay_rate        DOUBLE PRECISION NOT NULL,
    total_disruptions BIGINT NOT NULL,
    disruption_rate   DOUBLE PRECISION NOT NULL,
    exported_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertGold = `INSERT INTO agg_punctuality (
    service_type, scheduled_hour, day_of_week, total_trains, delayed_trains,
    avg_delay_minutes, punctuality_rate, delay_rate, total_disruptions, disruption_rate
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

type PostgresMirror struct {
	db *sql.DB
}

func NewPostgresMirror(db *sql.DB) *PostgresMirror {
	return &PostgresMirror{db: db}
}

// Mirror replaces the contents of agg_punctuality with rows in one transaction.
func (m *PostgresMirror) Mirror(ctx context.Context, rows []departures.Gold) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, createGold); err != nil {
		return fmt.Errorf("create agg_punctuality: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `TRUNCATE agg_punctuality`); err != nil {
		return fmt.Errorf("truncate agg_punctuality: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertGold)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err = stmt.ExecContext(ctx,
			r.ServiceType, nullInt(r.ScheduledHour), nullString(r.DayOfWeek),
			r.TotalTrains, r.DelayedTrains, r.AvgDelayMinutes,
			r.PunctualityRate, r.DelayRate, r.TotalDisruptions, r.DisruptionRate,
		); err != nil {
			return fmt.Errorf("insert %s: %w", r.ServiceType, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
