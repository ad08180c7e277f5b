package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"autopilot/internal/domain"
	"autopilot/internal/execution"
	"autopilot/internal/market"
	"autopilot/internal/pipeline"
	"autopilot/internal/scheduler"
	"autopilot/internal/strategy"
)

type fakePort struct {
	mu        sync.Mutex
	launches  int
	closes    int
	launchErr error
	up        bool
}

func (p *fakePort) Launch(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.launches++
	if p.launchErr != nil {
		return p.launchErr
	}
	p.up = true
	return nil
}

func (p *fakePort) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.up
}

func (p *fakePort) Open(context.Context, string, domain.WaitPolicy) (domain.Document, error) {
	return nil, domain.ErrPortUnavailable
}

func (p *fakePort) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	p.up = false
	return nil
}

type nopSource struct{}

func (nopSource) NeedsPort() bool                                  { return false }
func (nopSource) Trends(context.Context, string) ([]string, error) { return []string{"x"}, nil }

// slowSource blocks every fetch until release is closed and records whether
// the port was still up when the fetch resumed.
type slowSource struct {
	port    *fakePort
	started chan struct{}
	once    sync.Once
	release chan struct{}

	mu      sync.Mutex
	sawDown bool
}

func (s *slowSource) NeedsPort() bool { return true }

func (s *slowSource) Trends(context.Context, string) ([]string, error) {
	s.once.Do(func() { close(s.started) })
	<-s.release
	if !s.port.Available() {
		s.mu.Lock()
		s.sawDown = true
		s.mu.Unlock()
	}
	return []string{"x"}, nil
}

type events struct {
	mu   sync.Mutex
	list []domain.Event
}

func (e *events) Publish(ev domain.Event) {
	e.mu.Lock()
	e.list = append(e.list, ev)
	e.mu.Unlock()
}

func (e *events) count(kind domain.EventKind) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.list {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// farCadences never fire during a test.
func farCadences() Cadences {
	far := scheduler.FixedInterval{Every: 24 * time.Hour}
	return Cadences{
		MarketScan: far, Competitors: far, Detection: far, Optimization: far,
		Report: far, QuickScan: far, HealthCheck: far,
	}
}

func newEngine(t *testing.T, port *fakePort, cadences Cadences) (*Engine, *events) {
	t.Helper()
	return newEngineWithSource(t, port, cadences, nopSource{})
}

func newEngineWithSource(t *testing.T, port *fakePort, cadences Cadences, source market.TrendSource) (*Engine, *events) {
	t.Helper()
	p, err := pipeline.New(pipeline.Deps{
		Port:       port,
		Source:     source,
		Scorer:     market.NewScorer([]string{"ai"}, []string{"2024"}),
		Strategies: []strategy.Strategy{strategy.NewStatic(true)},
		Executor:   execution.NewExecutor(execution.DefaultHandlers(nil), nil),
	}, pipeline.Options{Markets: []string{"AI tools"}})
	if err != nil {
		t.Fatal(err)
	}

	ev := &events{}
	e := New(context.Background(), Options{
		Pipeline:  p,
		Port:      port,
		Cadences:  cadences,
		Defaults:  domain.DefaultEngineConfig(),
		Publisher: ev,
	})
	t.Cleanup(func() { _ = e.Stop() })
	return e, ev
}

func TestStart_TwiceRegistersOnce(t *testing.T) {
	port := &fakePort{}
	e, ev := newEngine(t, port, farCadences())
	ctx := context.Background()

	if err := e.Start(ctx, domain.ConfigPatch{}); err != nil {
		t.Fatal(err)
	}
	first := e.sched

	off := false
	if err := e.Start(ctx, domain.ConfigPatch{MarketScanning: &off}); err != nil {
		t.Fatal(err)
	}
	if e.sched != first {
		t.Error("second start replaced the scheduler")
	}
	if !e.Running() {
		t.Error("expected running after both starts")
	}
	if port.launches != 1 {
		t.Errorf("expected one launch, got %d", port.launches)
	}
	if !e.Config().MarketScanning {
		t.Error("patch of an ignored start must not apply")
	}
	if ev.count(domain.EventEngine) != 1 {
		t.Errorf("expected one started event, got %d", ev.count(domain.EventEngine))
	}
}

func TestStart_ConcurrentCallsRegisterOnce(t *testing.T) {
	port := &fakePort{}
	e, _ := newEngine(t, port, farCadences())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Start(context.Background(), domain.ConfigPatch{})
		}()
	}
	wg.Wait()

	if port.launches != 1 {
		t.Errorf("expected a single launch, got %d", port.launches)
	}
}

func TestStart_MergesPatchOverDefaults(t *testing.T) {
	e, _ := newEngine(t, &fakePort{}, farCadences())
	off := false
	if err := e.Start(context.Background(), domain.ConfigPatch{CompetitorMonitoring: &off}); err != nil {
		t.Fatal(err)
	}
	cfg := e.Config()
	if cfg.CompetitorMonitoring || !cfg.MarketScanning || !cfg.OpportunityDetection || !cfg.AutoOptimization {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestStart_LaunchFailureStillRuns(t *testing.T) {
	port := &fakePort{launchErr: errors.New("chrome not found")}
	e, _ := newEngine(t, port, farCadences())

	if err := e.Start(context.Background(), domain.ConfigPatch{}); err != nil {
		t.Fatalf("launch failure must not fail start: %v", err)
	}
	s := e.Stats()
	if !s.IsRunning || s.PortAvailable {
		t.Errorf("expected running without port, got %+v", s)
	}
	if len(s.NextRuns) != 7 {
		t.Errorf("expected 7 cadences, got %v", s.NextRuns)
	}
}

func TestStop_NoopWhenStopped(t *testing.T) {
	port := &fakePort{}
	e, _ := newEngine(t, port, farCadences())

	if err := e.Stop(); err != nil {
		t.Errorf("stop on stopped engine: %v", err)
	}
	if port.closes != 0 {
		t.Error("stop on stopped engine closed the port")
	}
}

func TestStop_ClosesPortAndAllowsRestart(t *testing.T) {
	port := &fakePort{}
	e, _ := newEngine(t, port, farCadences())
	ctx := context.Background()

	if err := e.Start(ctx, domain.ConfigPatch{}); err != nil {
		t.Fatal(err)
	}
	if err := e.Stop(); err != nil {
		t.Fatal(err)
	}
	if e.Running() || port.closes != 1 {
		t.Errorf("expected stopped with port closed, running=%v closes=%d", e.Running(), port.closes)
	}
	if err := e.Stop(); err != nil || port.closes != 1 {
		t.Errorf("second stop should be a no-op, err=%v closes=%d", err, port.closes)
	}

	if err := e.Start(ctx, domain.ConfigPatch{}); err != nil {
		t.Fatal(err)
	}
	if !e.Running() || port.launches != 2 {
		t.Errorf("restart failed, running=%v launches=%d", e.Running(), port.launches)
	}
}

func TestDisabledStageSkipsFires(t *testing.T) {
	fast := scheduler.FixedInterval{Every: 5 * time.Millisecond}
	c := farCadences()
	c.MarketScan = fast
	c.Detection = fast
	e, _ := newEngine(t, &fakePort{}, c)

	off := false
	if err := e.Start(context.Background(), domain.ConfigPatch{MarketScanning: &off}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for e.Stats().TasksCompleted == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	s := e.Stats()
	if s.TasksCompleted == 0 {
		t.Fatal("enabled detection stage never ran")
	}
	if s.Opportunities != 0 {
		t.Errorf("disabled market scan produced %d opportunities", s.Opportunities)
	}
}

func TestExecuteTask_Passthrough(t *testing.T) {
	e, _ := newEngine(t, &fakePort{}, farCadences())
	if _, err := e.ExecuteTask(context.Background(), "nope"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestStop_WaitsForInFlightStageBeforeClosingPort(t *testing.T) {
	port := &fakePort{}
	source := &slowSource{port: port, started: make(chan struct{}), release: make(chan struct{})}
	c := farCadences()
	c.MarketScan = scheduler.FixedInterval{Every: 5 * time.Millisecond}
	e, _ := newEngineWithSource(t, port, c, source)

	if err := e.Start(context.Background(), domain.ConfigPatch{}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-source.started:
	case <-time.After(2 * time.Second):
		t.Fatal("market scan never started")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- e.Stop() }()

	time.Sleep(50 * time.Millisecond)
	if port.closeCount() != 0 {
		t.Fatal("port closed while a stage was still fetching")
	}
	select {
	case <-stopped:
		t.Fatal("stop returned before the in-flight stage finished")
	default:
	}

	close(source.release)
	if err := <-stopped; err != nil {
		t.Fatal(err)
	}
	if port.closeCount() != 1 {
		t.Errorf("expected port closed once after the stage, got %d", port.closeCount())
	}
	source.mu.Lock()
	defer source.mu.Unlock()
	if source.sawDown {
		t.Error("in-flight stage saw the port closed")
	}
}

func TestShutdown_BoundedByContext(t *testing.T) {
	port := &fakePort{}
	source := &slowSource{port: port, started: make(chan struct{}), release: make(chan struct{})}
	c := farCadences()
	c.MarketScan = scheduler.FixedInterval{Every: 5 * time.Millisecond}
	e, _ := newEngineWithSource(t, port, c, source)
	defer close(source.release)

	if err := e.Start(context.Background(), domain.ConfigPatch{}); err != nil {
		t.Fatal(err)
	}
	<-source.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := e.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
}
