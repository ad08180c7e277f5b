// Package engine is the host-facing facade: it owns the running/stopped
// lifecycle, the stage flags and the cadence loop around a pipeline.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"autopilot/internal/domain"
	"autopilot/internal/pipeline"
	"autopilot/internal/scheduler"
)

// Launcher is implemented by ports that hold a resource which must be
// acquired on start, such as a browser session.
type Launcher interface {
	Launch(ctx context.Context) error
}

// Cadences holds the trigger of every stage.
type Cadences struct {
	MarketScan   scheduler.Cadence
	Competitors  scheduler.Cadence
	Detection    scheduler.Cadence
	Optimization scheduler.Cadence
	Report       scheduler.Cadence
	QuickScan    scheduler.Cadence
	HealthCheck  scheduler.Cadence
}

// DefaultCadences is hourly scans, competitors every 2h, detection every
// 4h, optimization at 03:00, the report at 08:00, a quick scan every 15m and
// a health check every 5m.
func DefaultCadences(loc *time.Location) Cadences {
	return Cadences{
		MarketScan:   scheduler.EveryHours(1, loc),
		Competitors:  scheduler.EveryHours(2, loc),
		Detection:    scheduler.EveryHours(4, loc),
		Optimization: scheduler.Daily(3, 0, loc),
		Report:       scheduler.Daily(8, 0, loc),
		QuickScan:    scheduler.FixedInterval{Every: 15 * time.Minute},
		HealthCheck:  scheduler.FixedInterval{Every: 5 * time.Minute},
	}
}

type Options struct {
	Pipeline *pipeline.Pipeline
	Port     domain.Port
	Cadences Cadences
	// Defaults are the stage flags before any Start patch is applied.
	Defaults  domain.EngineConfig
	Clock     scheduler.Clock
	Publisher domain.Publisher
	Logger    *slog.Logger
}

// Stats is the snapshot the host polls.
type Stats struct {
	pipeline.Counts

	IsRunning     bool                 `json:"isRunning"`
	StartedAt     *time.Time           `json:"startedAt,omitempty"`
	Config        domain.EngineConfig  `json:"config"`
	Optimizations int                  `json:"optimizations"`
	PortAvailable bool                 `json:"portAvailable"`
	NextRuns      map[string]time.Time `json:"nextRuns,omitempty"`
}

type Engine struct {
	opts Options
	log  *slog.Logger
	base context.Context

	// lifecycle serialises Start and Stop end to end.
	lifecycle sync.Mutex

	mu        sync.RWMutex
	cfg       domain.EngineConfig
	running   bool
	startedAt time.Time
	sched     *scheduler.Scheduler
	cancel    context.CancelFunc
	done      chan struct{}
}

// New builds a stopped engine. base bounds the lifetime of the cadence loop
// across every Start; it is usually the process context.
func New(base context.Context, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = scheduler.RealClock
	}
	return &Engine{
		opts: opts,
		log:  opts.Logger.With("component", "engine"),
		base: base,
		cfg:  opts.Defaults,
	}
}

// Start merges patch over the current flags, acquires the port and starts
// the cadence loop. Calling Start while running only logs a warning; the
// patch is ignored. A port that fails to launch is logged and the engine
// runs without it.
func (e *Engine) Start(ctx context.Context, patch domain.ConfigPatch) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	if running {
		e.log.Warn("engine already running, start ignored")
		return nil
	}

	if l, ok := e.opts.Port.(Launcher); ok {
		if err := l.Launch(ctx); err != nil {
			e.log.Error("browser port failed to start, scraping stages will be skipped", "error", err)
		}
	}

	sched := scheduler.New(e.opts.Clock, e.opts.Logger, e.jobs()...)
	loopCtx, cancel := context.WithCancel(e.base)
	done := make(chan struct{})

	e.mu.Lock()
	e.cfg = e.cfg.Merge(patch)
	e.running = true
	e.startedAt = e.opts.Clock.Now()
	e.sched = sched
	e.cancel = cancel
	e.done = done
	cfg := e.cfg
	e.mu.Unlock()

	go func() {
		defer close(done)
		_ = sched.Run(loopCtx)
	}()

	e.log.Info("engine started",
		"market_scanning", cfg.MarketScanning,
		"competitor_monitoring", cfg.CompetitorMonitoring,
		"opportunity_detection", cfg.OpportunityDetection,
		"auto_optimization", cfg.AutoOptimization,
	)
	e.publish("started")
	return nil
}

// Stop cancels future fires, waits for in-flight stages to finish and then
// releases the port. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	cancel, done, sched := e.cancel, e.done, e.sched
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	cancel()
	<-done
	// Stages still hold pages on the port; each is bounded by the fetch timeout.
	sched.Wait()

	var err error
	if e.opts.Port != nil {
		if cerr := e.opts.Port.Close(); cerr != nil {
			err = fmt.Errorf("closing port: %w", cerr)
			e.log.Warn("failed to close browser port", "error", cerr)
		}
	}

	e.log.Info("engine stopped")
	e.publish("stopped")
	return err
}

// Shutdown is Stop bounded by ctx.
func (e *Engine) Shutdown(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- e.Stop() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for running stages: %w", ctx.Err())
	}
}

func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

func (e *Engine) Config() domain.EngineConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	s := Stats{IsRunning: e.running, Config: e.cfg}
	if e.running {
		started := e.startedAt
		s.StartedAt = &started
		s.NextRuns = e.sched.NextRuns()
	}
	e.mu.RUnlock()

	p := e.opts.Pipeline
	s.Counts = p.Counts()
	s.Optimizations = p.Optimizations()
	s.PortAvailable = e.opts.Port != nil && e.opts.Port.Available()
	return s
}

func (e *Engine) Opportunities() []domain.Opportunity {
	return e.opts.Pipeline.Opportunities()
}

func (e *Engine) Tasks() []domain.Task {
	return e.opts.Pipeline.Tasks()
}

// ExecuteTask runs a pending task on demand. It works whether or not the
// engine is running.
func (e *Engine) ExecuteTask(ctx context.Context, id string) (domain.Task, error) {
	return e.opts.Pipeline.ExecuteTask(ctx, id)
}

func (e *Engine) flag(get func(domain.EngineConfig) bool) func() bool {
	return func() bool {
		e.mu.RLock()
		defer e.mu.RUnlock()
		return get(e.cfg)
	}
}

func (e *Engine) jobs() []scheduler.Job {
	p := e.opts.Pipeline
	c := e.opts.Cadences
	always := func() bool { return true }

	return []scheduler.Job{
		{
			Name:    pipeline.StageMarketScan,
			Cadence: c.MarketScan,
			Enabled: e.flag(func(f domain.EngineConfig) bool { return f.MarketScanning }),
			Run: func(ctx context.Context) error {
				_, err := p.ScanMarkets(ctx)
				return err
			},
		},
		{
			Name:    pipeline.StageCompetitors,
			Cadence: c.Competitors,
			Enabled: e.flag(func(f domain.EngineConfig) bool { return f.CompetitorMonitoring }),
			Run: func(ctx context.Context) error {
				_, err := p.MonitorCompetitors(ctx)
				return err
			},
		},
		{
			Name:    pipeline.StageDetection,
			Cadence: c.Detection,
			Enabled: e.flag(func(f domain.EngineConfig) bool { return f.OpportunityDetection }),
			Run: func(ctx context.Context) error {
				_, err := p.DetectOpportunities(ctx)
				return err
			},
		},
		{
			Name:    pipeline.StageOptimization,
			Cadence: c.Optimization,
			Enabled: e.flag(func(f domain.EngineConfig) bool { return f.AutoOptimization }),
			Run: func(ctx context.Context) error {
				_, err := p.OptimizeProjects(ctx)
				return err
			},
		},
		{
			Name:    pipeline.StageReport,
			Cadence: c.Report,
			Enabled: always,
			Run: func(ctx context.Context) error {
				_, err := p.GenerateReport(ctx)
				return err
			},
		},
		{
			Name:    pipeline.StageQuickScan,
			Cadence: c.QuickScan,
			Enabled: always,
			Run: func(ctx context.Context) error {
				p.QuickScan(ctx)
				return nil
			},
		},
		{
			Name:    pipeline.StageHealth,
			Cadence: c.HealthCheck,
			Enabled: always,
			Run: func(ctx context.Context) error {
				p.HealthCheck(ctx)
				return nil
			},
		},
	}
}

func (e *Engine) publish(state string) {
	if e.opts.Publisher == nil {
		return
	}
	e.opts.Publisher.Publish(domain.Event{
		Kind:    domain.EventEngine,
		At:      e.opts.Clock.Now(),
		Payload: map[string]any{"state": state, "isRunning": state == "started"},
	})
}
