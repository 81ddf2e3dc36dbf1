package db

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuckDSN(t *testing.T) {
	assert.Equal(t, "data/p.duckdb", DuckDSN("data/p.duckdb", nil))
	assert.Equal(t, "data/p.duckdb?access_mode=read_only",
		DuckDSN("data/p.duckdb", map[string]string{"access_mode": "read_only"}))
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "postgres://app:xxxxx@db:5432/gold", RedactDSN("postgres://app:secret@db:5432/gold"))
	assert.Equal(t, "postgres://db:5432/gold", RedactDSN("postgres://db:5432/gold"))
	assert.Equal(t, "host=db user=app", RedactDSN("host=db user=app"))
}

func TestOpenReadOnlyMissingFile(t *testing.T) {
	_, err := OpenReadOnly(filepath.Join(t.TempDir(), "absent.duckdb"))
	assert.True(t, errors.Is(err, ErrNoDatabase))
}

func TestSilverCountWithoutTable(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).
		WithArgs("silver", "departures").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	n, err := SilverCount(context.Background(), sqlDB)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestAllowed(t *testing.T) {
	cases := []struct {
		name    string
		count   int64
		limit   int
		allowed bool
	}{
		{"below limit", 120, 500, true},
		{"at limit", 500, 500, false},
		{"over limit", 731, 500, false},
		{"limit disabled", 9000, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sqlDB, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer sqlDB.Close()

			mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
			mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM silver.departures")).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tc.count))

			ok, n, err := IngestAllowed(context.Background(), sqlDB, tc.limit)
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, ok)
			assert.Equal(t, tc.count, n)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFetchGoldFiltersServiceTypes(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	rows := sqlmock.NewRows(goldColumns).
		AddRow("Regional", 8, "Monday", 10, 4, 3.5, 60.0, 40.0, 1, 10.0).
		AddRow("S-Bahn", nil, nil, 2, 0, 0.0, 100.0, 0.0, 0, 0.0)
	mock.ExpectQuery(regexp.QuoteMeta("FROM gold.agg_punctuality WHERE service_type IN (?,?) ORDER BY avg_delay_minutes DESC")).
		WithArgs("Regional", "S-Bahn").
		WillReturnRows(rows)

	got, err := FetchGold(context.Background(), sqlDB, []string{"Regional", "S-Bahn"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Regional", got[0].ServiceType)
	require.NotNil(t, got[0].ScheduledHour)
	assert.Equal(t, 8, *got[0].ScheduledHour)
	assert.Equal(t, int64(4), got[0].DelayedTrains)
	assert.Nil(t, got[1].ScheduledHour)
	assert.Nil(t, got[1].DayOfWeek)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchGoldWithoutFilter(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectQuery(`FROM gold\.agg_punctuality ORDER BY`).
		WillReturnRows(sqlmock.NewRows(goldColumns))

	got, err := FetchGold(context.Background(), sqlDB, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceTypes(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT service_type FROM gold.agg_punctuality ORDER BY service_type")).
		WillReturnRows(sqlmock.NewRows([]string{"service_type"}).AddRow("Long Distance").AddRow("Regional"))

	got, err := ServiceTypes(context.Background(), sqlDB)
	require.NoError(t, err)
	assert.Equal(t, []string{"Long Distance", "Regional"}, got)
}

func TestFetchDeparturesLimit(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM silver.departures ORDER BY scheduled_time DESC NULLS LAST, trip_id LIMIT 5")).
		WillReturnError(errors.New("catalog error"))

	_, err = FetchDepartures(context.Background(), sqlDB, 5)
	assert.ErrorContains(t, err, "fetch silver")
}
