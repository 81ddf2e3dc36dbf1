package dashboard

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"punktlich/internal/departures"
)

func TestSummarizeIsUnweighted(t *testing.T) {
	got := summarize(goldFrame(sampleGold()))
	assert.Equal(t, Summary{MeanPunctuality: 86.7, MeanDelay: 2, Disruptions: 3, Rows: 3}, got)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, summarize(goldFrame(nil)))
}

func TestHourlySeriesWeightsByTrains(t *testing.T) {
	rows := append(sampleGold(), departures.Gold{ServiceType: "Long Distance", TotalTrains: 5})
	got := hourlySeries(rows)

	require.Len(t, got, 2)
	assert.Equal(t, ChartSeries{Name: "Long Distance", Hours: []int{8}, Rates: []float64{80}}, got[0])
	assert.Equal(t, ChartSeries{Name: "Regional", Hours: []int{9}, Rates: []float64{100}}, got[1])
}

func TestGoldFrameNullKeys(t *testing.T) {
	df := goldFrame([]departures.Gold{{ServiceType: "Other", TotalTrains: 1}})
	assert.Equal(t, "", df.Col("scheduled_hour").Records()[0])
	assert.Equal(t, "", df.Col("day_of_week").Records()[0])
}

func TestCachedStore(t *testing.T) {
	inner := &fakeStore{gold: sampleGold()}
	s := NewCachedStore(inner, time.Minute)
	ctx := context.Background()

	_, err := s.Gold(ctx, []string{"Long Distance", "Regional"})
	require.NoError(t, err)
	_, err = s.Gold(ctx, []string{"Regional", "Long Distance"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	_, err = s.Gold(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedStoreSkipsErrors(t *testing.T) {
	inner := &fakeStore{err: errors.New("locked")}
	s := NewCachedStore(inner, time.Minute)

	_, err := s.ServiceTypes(context.Background())
	require.Error(t, err)
	inner.err = nil
	_, err = s.ServiceTypes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedStoreZeroTTL(t *testing.T) {
	inner := &fakeStore{}
	assert.Same(t, Store(inner), NewCachedStore(inner, 0))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeXLSX(&buf, goldFrame(sampleGold())))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "service_type", rows[0][0])
	assert.Equal(t, "Long Distance", rows[1][0])
}

func TestSetCellReportsErrors(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, setCell(f, "Sheet1", 1, 1, "ok"))
	assert.ErrorContains(t, setCell(f, "Sheet1", 0, 1, "x"), "cell (0,1)")
	assert.ErrorContains(t, setCell(f, "missing", 1, 1, "x"), "set missing!A1")
}
