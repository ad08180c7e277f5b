package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2024, 3, 10, h, m, 0, 0, time.UTC)
}

func TestFixedTime_Hourly(t *testing.T) {
	c := EveryHours(1, time.UTC)
	if got := c.Next(at(10, 15)); !got.Equal(at(11, 0)) {
		t.Errorf("expected 11:00, got %v", got)
	}
	if got := c.Next(at(11, 0)); !got.Equal(at(12, 0)) {
		t.Errorf("exact boundary should advance, got %v", got)
	}
}

func TestFixedTime_EveryFourHours(t *testing.T) {
	c := EveryHours(4, time.UTC)
	if got := c.Next(at(9, 30)); !got.Equal(at(12, 0)) {
		t.Errorf("expected 12:00, got %v", got)
	}
	if got := c.Next(at(22, 0)); !got.Equal(at(0, 0).AddDate(0, 0, 1)) {
		t.Errorf("expected midnight next day, got %v", got)
	}
}

func TestFixedTime_Daily(t *testing.T) {
	c := Daily(3, 0, time.UTC)
	if got := c.Next(at(2, 59)); !got.Equal(at(3, 0)) {
		t.Errorf("expected 03:00 today, got %v", got)
	}
	if got := c.Next(at(8, 0)); !got.Equal(at(3, 0).AddDate(0, 0, 1)) {
		t.Errorf("expected 03:00 tomorrow, got %v", got)
	}
}

func TestFixedTime_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	c := Daily(8, 0, loc)
	// 05:00 UTC is 07:00 local, so the next fire is 06:00 UTC.
	if got := c.Next(at(5, 0)); !got.Equal(at(6, 0)) {
		t.Errorf("expected 06:00 UTC, got %v", got.UTC())
	}
}

func TestFixedTime_SpringForwardGapStillFires(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	// 02:30 does not exist on 2024-03-10 in New York.
	c := Daily(2, 30, loc)
	after := time.Date(2024, 3, 10, 0, 0, 0, 0, loc)

	got := c.Next(after)
	if !got.After(after) || got.Sub(after) >= 12*time.Hour {
		t.Fatalf("expected a fire early on 2024-03-10, got %v", got)
	}
	if d := got.In(loc).Day(); d != 10 {
		t.Errorf("expected the gap day, got day %d", d)
	}

	next := c.Next(got)
	if want := time.Date(2024, 3, 11, 2, 30, 0, 0, loc); !next.Equal(want) {
		t.Errorf("expected %v the following day, got %v", want, next)
	}
}

func TestFixedInterval(t *testing.T) {
	c := FixedInterval{Every: 15 * time.Minute}
	if got := c.Next(at(10, 0)); !got.Equal(at(10, 15)) {
		t.Errorf("expected 10:15, got %v", got)
	}
}

type counter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *counter) job(name string, cadence Cadence, enabled func() bool) Job {
	return Job{
		Name:    name,
		Cadence: cadence,
		Enabled: enabled,
		Run: func(context.Context) error {
			c.mu.Lock()
			c.calls[name]++
			c.mu.Unlock()
			return nil
		},
	}
}

func TestTick_FiresDueJobsOnly(t *testing.T) {
	c := &counter{calls: map[string]int{}}
	s := New(nil, nil,
		c.job("market", EveryHours(1, time.UTC), nil),
		c.job("report", Daily(8, 0, time.UTC), nil),
		c.job("quick", FixedInterval{Every: 15 * time.Minute}, nil),
	)
	ctx := context.Background()
	s.arm(at(7, 50))

	fired := s.tick(ctx, at(8, 0))
	s.Wait()
	if len(fired) != 2 {
		t.Fatalf("expected market and report at 08:00, got %v", fired)
	}

	fired = s.tick(ctx, at(8, 5))
	s.Wait()
	if len(fired) != 1 || fired[0] != "quick" {
		t.Errorf("expected quick scan at 08:05, got %v", fired)
	}

	if next := s.NextRuns(); !next["report"].Equal(at(8, 0).AddDate(0, 0, 1)) {
		t.Errorf("report not re-armed for tomorrow: %v", next["report"])
	}
	if c.calls["market"] != 1 || c.calls["report"] != 1 || c.calls["quick"] != 1 {
		t.Errorf("unexpected calls %v", c.calls)
	}
}

func TestTick_MissedSlotsFireOnce(t *testing.T) {
	c := &counter{calls: map[string]int{}}
	s := New(nil, nil, c.job("health", FixedInterval{Every: 5 * time.Minute}, nil))
	s.arm(at(9, 0))

	s.tick(context.Background(), at(9, 31))
	s.Wait()
	if c.calls["health"] != 1 {
		t.Errorf("expected one catch-up fire, got %d", c.calls["health"])
	}
	if next := s.NextRuns()["health"]; !next.Equal(at(9, 35)) {
		t.Errorf("expected next at 09:35, got %v", next)
	}
}

func TestTick_DisabledJobSkippedButKept(t *testing.T) {
	c := &counter{calls: map[string]int{}}
	var enabled atomic.Bool
	s := New(nil, nil, c.job("competitors", EveryHours(2, time.UTC), enabled.Load))
	ctx := context.Background()
	s.arm(at(9, 0))

	if fired := s.tick(ctx, at(10, 0)); len(fired) != 0 {
		t.Errorf("disabled job fired: %v", fired)
	}
	enabled.Store(true)
	fired := s.tick(ctx, at(12, 0))
	s.Wait()
	if len(fired) != 1 || c.calls["competitors"] != 1 {
		t.Errorf("re-enabled job did not fire: %v", fired)
	}
}

func TestRun_StopsOnCancelAndLetsJobsFinish(t *testing.T) {
	var runs atomic.Int32
	finished := make(chan struct{})
	started := make(chan struct{}, 1)

	s := New(nil, nil, Job{
		Name:    "slow",
		Cadence: FixedInterval{Every: 5 * time.Millisecond},
		Run: func(ctx context.Context) error {
			if runs.Add(1) == 1 {
				started <- struct{}{}
				time.Sleep(30 * time.Millisecond)
				if ctx.Err() != nil {
					return errors.New("in-flight job was cancelled")
				}
				close(finished)
			}
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	s.Wait()
	select {
	case <-finished:
	default:
		t.Error("in-flight job did not finish normally")
	}
}
