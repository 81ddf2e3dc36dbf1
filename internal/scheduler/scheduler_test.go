package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRejectsBadSpec(t *testing.T) {
	s := New("every now and then", func(context.Context) error { return nil })
	err := s.Start(context.Background())
	assert.ErrorContains(t, err, "invalid schedule")
	s.Stop()
}

func TestCronRunsJob(t *testing.T) {
	var runs atomic.Int32
	s := New("@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
}

func TestParseScheduleIsMinuteFirst(t *testing.T) {
	from := time.Date(2025, 6, 2, 8, 15, 30, 0, time.UTC)
	cases := map[string]time.Time{
		"* * * * *":    time.Date(2025, 6, 2, 8, 16, 0, 0, time.UTC),
		"0 * * * *":    time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		"*/30 * * * *": time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC),
		"@hourly":      time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		"@every 30m":   from.Add(30 * time.Minute),
	}
	for spec, want := range cases {
		t.Run(spec, func(t *testing.T) {
			sched, err := parseSchedule(spec)
			require.NoError(t, err)
			assert.Equal(t, want, sched.Next(from))
		})
	}
}

func TestParseScheduleRejectsSecondsField(t *testing.T) {
	_, err := parseSchedule("0 0 * * * *")
	assert.ErrorContains(t, err, "invalid schedule")
}

func TestEveryMinuteSpecDoesNotFireEverySecond(t *testing.T) {
	var runs atomic.Int32
	s := New("* * * * *", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(2500 * time.Millisecond)
	s.Stop()

	// at most one minute boundary can fall inside the window
	assert.LessOrEqual(t, runs.Load(), int32(1))
}

func TestRunNowSerialisesJobs(t *testing.T) {
	var active, overlaps atomic.Int32
	s := New("@every 1h", func(context.Context) error {
		if active.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.RunNow(context.Background()))
		}()
	}
	wg.Wait()
	assert.Zero(t, overlaps.Load())
}

func TestRunNowReturnsJobError(t *testing.T) {
	boom := errors.New("boom")
	s := New("@every 1h", func(context.Context) error { return boom })
	assert.ErrorIs(t, s.RunNow(context.Background()), boom)
}

func TestRunNowSkipsCancelledContext(t *testing.T) {
	called := false
	s := New("@every 1h", func(context.Context) error {
		called = true
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.RunNow(ctx), context.Canceled)
	assert.False(t, called)
}

func TestWatchTriggersOnBronzeFiles(t *testing.T) {
	dir := t.TempDir()
	var runs atomic.Int32
	s := New("@every 1h", nil)
	s.SetSettle(50 * time.Millisecond)
	require.NoError(t, s.Watch(context.Background(), dir, func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	defer s.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bronze_20250602_080000.parquet"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bronze_20250602_080001.parquet"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), int32(2))
}

func TestWatchMissingDir(t *testing.T) {
	s := New("@every 1h", nil)
	err := s.Watch(context.Background(), filepath.Join(t.TempDir(), "absent"), func(context.Context) error { return nil })
	assert.Error(t, err)
	s.Stop()
}
