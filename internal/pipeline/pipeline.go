// Package pipeline turns scan and monitor output into scored opportunities,
// opportunities into tasks, and runs automated tasks as they are created.
// Every stage is safe to run concurrently with itself and the others.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"autopilot/internal/browser"
	"autopilot/internal/collector"
	"autopilot/internal/domain"
	"autopilot/internal/execution"
	"autopilot/internal/market"
	"autopilot/internal/optimizer"
	"autopilot/internal/performance"
	"autopilot/internal/strategy"
)

// Deps are the collaborators a Pipeline drives.
type Deps struct {
	Port       domain.Port
	Sink       domain.Sink
	Publisher  domain.Publisher
	Source     market.TrendSource
	Scorer     *market.Scorer
	Cache      *market.Cache
	Collector  *collector.Collector
	Strategies []strategy.Strategy
	Executor   *execution.Executor
	Optimizer  *optimizer.Optimizer
	Tracker    *performance.Tracker
	Logger     *slog.Logger
	// HeapReader overrides the runtime heap sample in health checks.
	HeapReader performance.HeapReader
}

type Options struct {
	Markets     []string
	Competitors []string
	Projects    []optimizer.Project
	// MaxOpportunities and MaxTasks bound the in-memory collections; the
	// oldest entries are dropped first. Zero keeps everything.
	MaxOpportunities int
	MaxTasks         int
	// HighPriorityThreshold marks a market as hot.
	HighPriorityThreshold int
	HeapWarnMB            int
	// Concurrency is how many markets or competitor pages a stage works on
	// at once.
	Concurrency int
}

type Pipeline struct {
	deps Deps
	opts Options
	log  *slog.Logger

	now   func() time.Time
	newID func() string

	mu            sync.Mutex
	opportunities []domain.Opportunity
	tasks         []*domain.Task
	taskIndex     map[string]*domain.Task
	running       map[string]struct{}
}

// New fills in defaults for the optional collaborators. Source and Scorer
// have no sensible default and are required.
func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Source == nil {
		return nil, errors.New("pipeline: trend source is required")
	}
	if deps.Scorer == nil {
		return nil, errors.New("pipeline: scorer is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Port == nil {
		deps.Port = browser.Off{}
	}
	if deps.Collector == nil {
		deps.Collector = collector.NewCollector(deps.Port)
	}
	if deps.Executor == nil {
		deps.Executor = execution.NewExecutor(execution.DefaultHandlers(deps.Logger), deps.Logger)
	}
	if deps.Optimizer == nil {
		deps.Optimizer = optimizer.New(optimizer.NewStaticAnalyzer(), optimizer.LogApplier{Logger: deps.Logger}, deps.Logger)
	}
	if deps.Tracker == nil {
		deps.Tracker = performance.NewTracker(performance.ModeCumulative)
	}
	if deps.Cache == nil {
		deps.Cache = market.NewCache(0)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Pipeline{
		deps:      deps,
		opts:      opts,
		log:       deps.Logger.With("component", "pipeline"),
		now:       time.Now,
		newID:     newID,
		taskIndex: make(map[string]*domain.Task),
		running:   make(map[string]struct{}),
	}, nil
}

// newID returns a time-ordered UUID.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Counts summarises the in-memory state.
type Counts struct {
	Opportunities  int `json:"opportunities"`
	Tasks          int `json:"tasks"`
	TasksPending   int `json:"tasksPending"`
	TasksCompleted int `json:"tasksCompleted"`
	TasksFailed    int `json:"tasksFailed"`
}

func (p *Pipeline) Counts() Counts {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := Counts{Opportunities: len(p.opportunities), Tasks: len(p.tasks)}
	for _, t := range p.tasks {
		switch t.Status {
		case domain.TaskPending:
			c.TasksPending++
		case domain.TaskCompleted:
			c.TasksCompleted++
		case domain.TaskFailed:
			c.TasksFailed++
		}
	}
	return c
}

// Opportunities returns a copy of the retained opportunities, oldest first.
func (p *Pipeline) Opportunities() []domain.Opportunity {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Opportunity, len(p.opportunities))
	copy(out, p.opportunities)
	return out
}

// Tasks returns copies of the retained tasks, oldest first.
func (p *Pipeline) Tasks() []domain.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Task, len(p.tasks))
	for i, t := range p.tasks {
		out[i] = *t
	}
	return out
}

// Task returns a copy of the task with id.
func (p *Pipeline) Task(id string) (domain.Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.taskIndex[id]
	if !ok {
		return domain.Task{}, false
	}
	return *t, true
}

// Optimizations is the number of optimizations applied so far.
func (p *Pipeline) Optimizations() int {
	return p.deps.Tracker.Snapshot().Optimizations
}

func (p *Pipeline) appendOpportunity(o domain.Opportunity) {
	p.mu.Lock()
	p.opportunities = append(p.opportunities, o)
	if limit := p.opts.MaxOpportunities; limit > 0 && len(p.opportunities) > limit {
		drop := len(p.opportunities) - limit
		p.opportunities = append([]domain.Opportunity(nil), p.opportunities[drop:]...)
	}
	p.mu.Unlock()
}

func (p *Pipeline) appendTask(t *domain.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tasks = append(p.tasks, t)
	p.taskIndex[t.ID] = t
	if limit := p.opts.MaxTasks; limit > 0 && len(p.tasks) > limit {
		drop := len(p.tasks) - limit
		for _, old := range p.tasks[:drop] {
			delete(p.taskIndex, old.ID)
		}
		p.tasks = append([]*domain.Task(nil), p.tasks[drop:]...)
	}
}

// persist writes a record. Failures are logged only: in-memory state stays
// authoritative.
func (p *Pipeline) persist(ctx context.Context, category domain.Category, key string, record any) {
	if p.deps.Sink == nil {
		return
	}
	if err := p.deps.Sink.Append(ctx, category, key, record); err != nil {
		p.log.Error("persisting record failed", "category", category, "key", key, "error", err)
	}
}

func (p *Pipeline) publish(kind domain.EventKind, payload any) {
	if p.deps.Publisher == nil {
		return
	}
	p.deps.Publisher.Publish(domain.Event{Kind: kind, At: p.now(), Payload: payload})
}

func (p *Pipeline) portReady() bool {
	return p.deps.Port.Available()
}
