package db

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"punktlich/internal/departures"
)

var goldColumns = []string{
	"service_type", "scheduled_hour", "day_of_week",
	"total_trains", "delayed_trains", "avg_delay_minutes",
	"punctuality_rate", "delay_rate", "total_disruptions", "disruption_rate",
}

var silverColumns = []string{
	"trip_id", "train", "destination", "path", "scheduled_time", "platform", "delay",
	"service_notices", "service_type", "scheduled_hour", "day_of_week", "status",
	"has_disruption", "source_file",
}

// FetchGold returns gold.agg_punctuality rows for the given service types, worst
// average delay first. An empty filter selects every service type.
func FetchGold(ctx context.Context, db *sql.DB, services []string) ([]departures.Gold, error) {
	q := sq.Select(goldColumns...).From("gold.agg_punctuality")
	if len(services) > 0 {
		q = q.Where(sq.Eq{"service_type": services})
	}
	q = q.OrderBy("avg_delay_minutes DESC", "service_type", "scheduled_hour NULLS LAST", "day_of_week NULLS LAST")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build gold query: %w", err)
	}
	var rows []departures.Gold
	if err := sqlx.NewDb(db, "duckdb").SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("fetch gold: %w", err)
	}
	return rows, nil
}

// ServiceTypes lists the distinct service types present in gold.
func ServiceTypes(ctx context.Context, db *sql.DB) ([]string, error) {
	query, args, err := sq.Select("DISTINCT service_type").
		From("gold.agg_punctuality").
		OrderBy("service_type").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build service type query: %w", err)
	}
	var out []string
	if err := sqlx.NewDb(db, "duckdb").SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("fetch service types: %w", err)
	}
	return out, nil
}

// FetchDepartures returns the most recently scheduled silver rows, at most limit.
func FetchDepartures(ctx context.Context, db *sql.DB, limit uint64) ([]departures.Silver, error) {
	q := sq.Select(silverColumns...).
		From("silver.departures").
		OrderBy("scheduled_time DESC NULLS LAST", "trip_id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return selectSilver(ctx, db, q)
}

// FetchSilver returns every silver row ordered by trip_id.
func FetchSilver(ctx context.Context, db *sql.DB) ([]departures.Silver, error) {
	return selectSilver(ctx, db, sq.Select(silverColumns...).From("silver.departures").OrderBy("trip_id"))
}

func selectSilver(ctx context.Context, db *sql.DB, q sq.SelectBuilder) ([]departures.Silver, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build silver query: %w", err)
	}
	var rows []departures.Silver
	if err := sqlx.NewDb(db, "duckdb").SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("fetch silver: %w", err)
	}
	return rows, nil
}
