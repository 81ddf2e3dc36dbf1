package departures

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	cases := map[int]string{
		-3: OnTime,
		0:  OnTime,
		1:  SmallDelay,
		5:  SmallDelay,
		6:  Late,
		45: Late,
	}
	for delay, want := range cases {
		assert.Equal(t, want, StatusOf(delay), "delay=%d", delay)
	}
}

func TestServiceTypeOf(t *testing.T) {
	cases := map[string]string{
		"ICE 147":     LongDistance,
		"ic 2431":     LongDistance,
		"EC 45":       LongDistance,
		"FLX 1805":    LongDistance,
		"RE1":         Regional,
		"RB 23":       Regional,
		"S5":          SBahn,
		"S 75":        SBahn,
		" s41 ":       SBahn,
		"Bus SEV":     Bus,
		"Unknown":     Other,
		"ID:-5612831": Other,
		"":            Other,
		"123":         Other,
	}
	for train, want := range cases {
		assert.Equal(t, want, ServiceTypeOf(train), "train=%q", train)
	}
}

func TestIsDisruption(t *testing.T) {
	assert.True(t, IsDisruption("Information|Störung"))
	assert.True(t, IsDisruption("Großstörung"))
	assert.True(t, IsDisruption("STOERUNG"))
	assert.False(t, IsDisruption("Bauarbeiten|Information"))
	assert.False(t, IsDisruption(""))
}

func TestRate(t *testing.T) {
	assert.Equal(t, 0.0, Rate(3, 0))
	assert.Equal(t, 33.3, Rate(1, 3))
	assert.Equal(t, 66.7, Rate(2, 3))
	assert.Equal(t, 100.0, Rate(4, 4))
}

func TestSummarize(t *testing.T) {
	rows := []Gold{
		{ServiceType: LongDistance, TotalTrains: 4, DelayedTrains: 1, TotalDisruptions: 1},
		{ServiceType: SBahn, TotalTrains: 6, DelayedTrains: 3, TotalDisruptions: 0},
	}
	got := Summarize(rows)
	assert.Equal(t, int64(10), got.Trains)
	assert.Equal(t, int64(4), got.Delayed)
	assert.Equal(t, 60.0, got.PunctualityRate)
	assert.Equal(t, 40.0, got.DelayRate)
	assert.Equal(t, 10.0, got.DisruptionRate)
	assert.InDelta(t, 100.0, got.PunctualityRate+got.DelayRate, 0.1)
}

func TestSQLRenderers(t *testing.T) {
	assert.Equal(t,
		"CASE WHEN delay <= 0 THEN 'On Time' WHEN delay < 6 THEN 'Small Delay' ELSE 'Late' END",
		StatusSQL("delay"))
	assert.Contains(t, ServiceTypeSQL("train"), "WHEN upper(regexp_extract(trim(train), '^[A-Za-z]+', 0)) IN ('S') THEN 'S-Bahn'")
	assert.Contains(t, ServiceTypeSQL("train"), "ELSE 'Other' END")
	assert.Equal(t, "COALESCE(regexp_matches(lower(n), 'störung|stoerung'), false)", DisruptionSQL("n"))
}
