// Package scheduler runs ingestion and pipeline jobs on a cron schedule and
// when new bronze files appear. Runs never overlap.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron"

	"punktlich/internal/bronze"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

type Scheduler struct {
	spec   string
	job    Job
	settle time.Duration

	runMu sync.Mutex // held for the duration of a job

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

func New(spec string, job Job) *Scheduler {
	return &Scheduler{spec: spec, job: job, settle: 2 * time.Second}
}

// SetSettle sets how long the watcher waits for more files before running.
func (s *Scheduler) SetSettle(d time.Duration) { s.settle = d }

// Start registers the cron job and starts the scheduler. Jobs receive a
// context cancelled by Stop.
func (s *Scheduler) Start(parent context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	sched, err := parseSchedule(s.spec)
	if err != nil {
		return err
	}
	ctx := s.ensureContext(parent)
	c := cron.New()
	c.Schedule(sched, cron.FuncJob(func() {
		if err := s.runTracked(ctx, "cron", s.job); err != nil {
			log.Printf("scheduled run failed: %v", err)
		}
	}))
	c.Start()
	s.cron = c
	log.Printf("scheduler started with %q", s.spec)
	return nil
}

// parseSchedule accepts a five-field crontab expression (minute first) or a
// descriptor such as "@every 30m" or "@hourly".
func parseSchedule(spec string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return sched, nil
}

// RunNow runs the scheduled job immediately, waiting for any running job.
func (s *Scheduler) RunNow(ctx context.Context) error {
	return s.run(ctx, "manual", s.job)
}

// Watch runs job after new bronze files land in dir. Bursts of files within
// the settle window trigger a single run.
func (s *Scheduler) Watch(parent context.Context, dir string, job Job) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	s.mu.Lock()
	if s.watcher != nil {
		s.mu.Unlock()
		w.Close()
		return fmt.Errorf("already watching")
	}
	s.watcher = w
	ctx := s.ensureContext(parent)
	s.mu.Unlock()

	trigger := make(chan struct{}, 1)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 || !bronze.IsBronzeFile(ev.Name) {
					continue
				}
				select {
				case trigger <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("bronze watcher error: %v", err)
			}
		}
	}()
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-trigger:
			}
			timer := time.NewTimer(s.settle)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			// drain triggers that arrived while settling
			select {
			case <-trigger:
			default:
			}
			if err := s.run(ctx, "watch", job); err != nil {
				log.Printf("bronze-triggered run failed: %v", err)
			}
		}
	}()
	log.Printf("watching %s for new bronze files", dir)
	return nil
}

// Stop cancels pending work and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// ensureContext returns the scheduler's context, creating it on first use.
// Callers hold s.mu.
func (s *Scheduler) ensureContext(parent context.Context) context.Context {
	if s.cancel == nil {
		ctx, cancel := context.WithCancel(parent)
		s.cancel = cancel
		s.ctx = ctx
	}
	return s.ctx
}

func (s *Scheduler) runTracked(ctx context.Context, trigger string, job Job) error {
	s.wg.Add(1)
	defer s.wg.Done()
	return s.run(ctx, trigger, job)
}

func (s *Scheduler) run(ctx context.Context, trigger string, job Job) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := job(ctx)
	log.Printf("%s run finished in %s (err=%v)", trigger, time.Since(start).Round(time.Millisecond), err)
	return err
}
