// Package scheduler triggers jobs on wall-clock and interval cadences from a
// single timer loop.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Clock is the time source of the dispatch loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Job is one named cadence and the work it triggers.
type Job struct {
	Name    string
	Cadence Cadence
	// Enabled is checked at every fire. A disabled job keeps its cadence and
	// simply skips the fire.
	Enabled func() bool
	Run     func(ctx context.Context) error
}

// Scheduler dispatches jobs. Fires run in their own goroutines so a slow job
// never delays another; a job may overlap with itself.
type Scheduler struct {
	jobs   []Job
	clock  Clock
	logger *slog.Logger

	mu   sync.Mutex
	next []time.Time

	wg sync.WaitGroup
}

func New(clock Clock, logger *slog.Logger, jobs ...Job) *Scheduler {
	if clock == nil {
		clock = RealClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:   jobs,
		clock:  clock,
		logger: logger.With("component", "scheduler"),
		next:   make([]time.Time, len(jobs)),
	}
}

// Run arms every job relative to now and dispatches fires until ctx is
// cancelled. Jobs already running are not cancelled: they get a context that
// outlives ctx. Use Wait to block until they finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.arm(s.clock.Now())
	for i, j := range s.jobs {
		s.logger.Info("cadence registered", "job", j.Name, "cadence", j.Cadence.String(), "next", s.next[i])
	}

	for {
		due := s.earliest()
		wait := due.Sub(s.clock.Now())
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-s.clock.After(wait):
			s.tick(ctx, s.clock.Now())
		}
	}
}

// Wait blocks until every fired job has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// NextRuns reports the next planned fire per job.
func (s *Scheduler) NextRuns() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.jobs))
	for i, j := range s.jobs {
		if !s.next[i].IsZero() {
			out[j.Name] = s.next[i]
		}
	}
	return out
}

func (s *Scheduler) arm(start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, j := range s.jobs {
		s.next[i] = j.Cadence.Next(start)
	}
}

func (s *Scheduler) earliest() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first time.Time
	for _, t := range s.next {
		if first.IsZero() || t.Before(first) {
			first = t
		}
	}
	if first.IsZero() {
		// No jobs: park for a long time.
		return s.clock.Now().Add(24 * time.Hour)
	}
	return first
}

// tick fires every job due at now and re-arms it past now. It returns the
// names of the jobs that were dispatched.
func (s *Scheduler) tick(ctx context.Context, now time.Time) []string {
	var due []Job

	s.mu.Lock()
	for i, j := range s.jobs {
		if s.next[i].IsZero() || s.next[i].After(now) {
			continue
		}
		n := s.next[i]
		for !n.After(now) {
			n = j.Cadence.Next(n)
		}
		s.next[i] = n
		due = append(due, j)
	}
	s.mu.Unlock()

	var fired []string
	for _, j := range due {
		if j.Enabled != nil && !j.Enabled() {
			s.logger.Debug("job disabled, skipping", "job", j.Name)
			continue
		}
		fired = append(fired, j.Name)
		s.dispatch(ctx, j)
	}
	return fired
}

func (s *Scheduler) dispatch(ctx context.Context, j Job) {
	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("job panicked", "job", j.Name, "panic", r)
			}
		}()

		started := s.clock.Now()
		if err := j.Run(runCtx); err != nil {
			s.logger.Warn("job failed", "job", j.Name, "error", err)
			return
		}
		s.logger.Debug("job finished", "job", j.Name, "took", s.clock.Now().Sub(started))
	}()
}
