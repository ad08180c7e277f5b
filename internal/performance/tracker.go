// Package performance keeps the counters behind the daily report and the
// periodic health check.
package performance

import (
	"fmt"
	"sync"
	"time"

	"autopilot/internal/domain"
)

// Mode decides what happens to counters when a report is emitted.
type Mode string

const (
	// ModeCumulative reports totals since the engine process started.
	ModeCumulative Mode = "cumulative"
	// ModeReset reports activity since the previous report.
	ModeReset Mode = "reset"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCumulative, ModeReset:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown report mode %q", s)
	}
}

// Counters is a point-in-time copy of the tracker.
type Counters struct {
	Opportunities  int     `json:"opportunities"`
	TasksCompleted int     `json:"tasksCompleted"`
	TasksFailed    int     `json:"tasksFailed"`
	Optimizations  int     `json:"optimizations"`
	NewRevenue     float64 `json:"newRevenue"`
}

// Tracker counts pipeline activity. It is safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	mode Mode
	c    Counters
}

func NewTracker(mode Mode) *Tracker {
	if mode == "" {
		mode = ModeCumulative
	}
	return &Tracker{mode: mode}
}

func (t *Tracker) Mode() Mode { return t.mode }

func (t *Tracker) RecordOpportunity() {
	t.mu.Lock()
	t.c.Opportunities++
	t.mu.Unlock()
}

// RecordTask counts a task that reached status.
func (t *Tracker) RecordTask(status domain.TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch status {
	case domain.TaskCompleted:
		t.c.TasksCompleted++
	case domain.TaskFailed:
		t.c.TasksFailed++
	}
}

func (t *Tracker) RecordOptimizations(n int) {
	t.mu.Lock()
	t.c.Optimizations += n
	t.mu.Unlock()
}

func (t *Tracker) Snapshot() Counters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.c
}

// Emit builds the report for day and, in reset mode, zeroes the counters.
func (t *Tracker) Emit(day time.Time) domain.Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := domain.Report{
		Date:           day.Format(time.DateOnly),
		Opportunities:  t.c.Opportunities,
		TasksCompleted: t.c.TasksCompleted,
		NewRevenue:     t.c.NewRevenue,
		Optimizations:  t.c.Optimizations,
	}
	if t.mode == ModeReset {
		t.c = Counters{}
	}
	return r
}
