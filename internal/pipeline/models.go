package pipeline

import (
	"fmt"
	"strings"

	"punktlich/internal/departures"
)

const (
	SilverTable = "silver.departures"
	GoldTable   = "gold.agg_punctuality"
)

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS silver`,
	`CREATE SCHEMA IF NOT EXISTS gold`,
}

// emptyBronze has the column types read_parquet yields for bronze files, with no rows.
const emptyBronze = `SELECT
    CAST(NULL AS VARCHAR) AS trip_id,
    CAST(NULL AS VARCHAR) AS train,
    CAST(NULL AS VARCHAR) AS destination,
    CAST(NULL AS VARCHAR) AS path,
    CAST(NULL AS VARCHAR) AS scheduled_time,
    CAST(NULL AS VARCHAR) AS platform,
    CAST(NULL AS INTEGER) AS delay,
    CAST(NULL AS VARCHAR) AS service_notices,
    CAST(NULL AS VARCHAR) AS filename,
    CAST(NULL AS BIGINT) AS file_row_number
WHERE false`

// bronzeSource returns a SELECT over every bronze file, exposing the file name
// and the row position inside it.
func bronzeSource(files []string) string {
	if len(files) == 0 {
		return emptyBronze
	}
	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = quoteLiteral(f)
	}
	return fmt.Sprintf(`SELECT trip_id, train, destination, path, scheduled_time, platform,
    delay, service_notices, filename, file_row_number
FROM read_parquet([%s], filename = true, file_row_number = true, union_by_name = true)`,
		strings.Join(quoted, ", "))
}

// silverSQL keeps the latest scheduled version of each trip. Ties on the
// timestamp go to the most recent bronze file, then the last row within it.
func silverSQL(files []string) string {
	return fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS
WITH bronze AS (
%s
),
parsed AS (
    SELECT
        trim(trip_id) AS trip_id,
        COALESCE(train, '') AS train,
        COALESCE(destination, '') AS destination,
        COALESCE(path, '') AS path,
        TRY_CAST(scheduled_time AS TIMESTAMP) AS scheduled_time,
        NULLIF(upper(trim(platform)), '') AS platform,
        COALESCE(TRY_CAST(delay AS INTEGER), 0) AS delay,
        NULLIF(service_notices, '') AS service_notices,
        COALESCE(parse_filename(filename), '') AS source_file,
        COALESCE(file_row_number, 0) AS file_row
    FROM bronze
    WHERE trip_id IS NOT NULL AND trim(trip_id) <> ''
),
ranked AS (
    SELECT *,
        ROW_NUMBER() OVER (
            PARTITION BY trip_id
            ORDER BY scheduled_time DESC NULLS LAST, source_file DESC, file_row DESC
        ) AS rn
    FROM parsed
)
SELECT
    trip_id,
    train,
    destination,
    path,
    scheduled_time,
    platform,
    delay,
    service_notices,
    %s AS service_type,
    CAST(hour(scheduled_time) AS INTEGER) AS scheduled_hour,
    dayname(scheduled_time) AS day_of_week,
    %s AS status,
    %s AS has_disruption,
    source_file
FROM ranked
WHERE rn = 1
ORDER BY trip_id`,
		SilverTable,
		bronzeSource(files),
		departures.ServiceTypeSQL("train"),
		departures.StatusSQL("delay"),
		departures.DisruptionSQL("service_notices"),
	)
}

func goldSQL() string {
	onTime := quoteLiteral(departures.OnTime)
	return fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS
SELECT
    service_type,
    scheduled_hour,
    day_of_week,
    COUNT(*) AS total_trains,
    COUNT(*) FILTER (WHERE status <> %[2]s) AS delayed_trains,
    CAST(ROUND(AVG(delay), 1) AS DOUBLE) AS avg_delay_minutes,
    ROUND(CAST(COUNT(*) FILTER (WHERE status = %[2]s) AS DOUBLE) * 100 / COUNT(*), 1) AS punctuality_rate,
    ROUND(CAST(COUNT(*) FILTER (WHERE status <> %[2]s) AS DOUBLE) * 100 / COUNT(*), 1) AS delay_rate,
    COUNT(*) FILTER (WHERE has_disruption) AS total_disruptions,
    ROUND(CAST(COUNT(*) FILTER (WHERE has_disruption) AS DOUBLE) * 100 / COUNT(*), 1) AS disruption_rate
FROM %[3]s
GROUP BY service_type, scheduled_hour, day_of_week
ORDER BY service_type, scheduled_hour NULLS LAST, day_of_week NULLS LAST`,
		GoldTable, onTime, SilverTable)
}

func countSQL(table string) string {
	return "SELECT count(*) FROM " + table
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
