package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"autopilot/internal/domain"
	"autopilot/internal/performance"
	"autopilot/internal/strategy"
)

// Stage names used in logs and stage events.
const (
	StageMarketScan   = "market_scan"
	StageCompetitors  = "competitor_monitor"
	StageDetection    = "opportunity_detection"
	StageOptimization = "project_optimization"
	StageReport       = "daily_report"
	StageQuickScan    = "quick_scan"
	StageHealth       = "health_check"
)

// StageResult summarises one stage run.
type StageResult struct {
	Stage     string        `json:"stage"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

func (p *Pipeline) finishStage(stage string, started time.Time, processed, failed int) StageResult {
	res := StageResult{Stage: stage, Processed: processed, Failed: failed, Duration: time.Since(started)}
	p.log.Info("stage complete", "stage", stage, "processed", processed, "failed", failed, "duration", res.Duration)
	p.publish(domain.EventStage, res)
	return res
}

// forEach runs fn over items with bounded concurrency. Failures are logged
// per item and never cancel siblings.
func (p *Pipeline) forEach(ctx context.Context, stage string, items []string, fn func(ctx context.Context, item string) error) (processed, failed int) {
	var ok, bad atomic.Int64
	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)

	for _, item := range items {
		item := item
		g.Go(func() error {
			if err := fn(ctx, item); err != nil {
				bad.Add(1)
				p.log.Warn("stage item failed", "stage", stage, "item", item, "error", err)
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(ok.Load()), int(bad.Load())
}

// ScanMarkets analyzes every configured market. When the trend source needs
// the browser and it is down, the whole stage is skipped.
func (p *Pipeline) ScanMarkets(ctx context.Context) (StageResult, error) {
	if p.deps.Source.NeedsPort() && !p.portReady() {
		return StageResult{Stage: StageMarketScan}, fmt.Errorf("%s skipped: %w", StageMarketScan, domain.ErrPortUnavailable)
	}

	started := time.Now()
	processed, failed := p.forEach(ctx, StageMarketScan, p.opts.Markets, func(ctx context.Context, m string) error {
		_, err := p.AnalyzeMarket(ctx, m)
		return err
	})
	return p.finishStage(StageMarketScan, started, processed, failed), nil
}

// AnalyzeMarket fetches trends for one market, scores them, and records the
// resulting opportunity.
func (p *Pipeline) AnalyzeMarket(ctx context.Context, marketName string) (domain.Opportunity, error) {
	trends, err := p.deps.Source.Trends(ctx, marketName)
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("analyzing %s: %w", marketName, err)
	}
	if trends == nil {
		trends = []string{}
	}

	o := domain.Opportunity{
		Market:    marketName,
		Trends:    trends,
		Timestamp: p.now(),
		Priority:  p.deps.Scorer.Score(marketName, trends),
	}

	p.appendOpportunity(o)
	p.deps.Cache.Set(o)
	p.deps.Tracker.RecordOpportunity()
	p.persist(ctx, domain.CategoryOpportunities, "opportunity-"+p.newID(), o)
	p.publish(domain.EventOpportunity, o)

	p.log.Info("market analyzed", "market", marketName, "trends", len(trends), "priority", o.Priority)
	return o, nil
}

// MonitorCompetitors collects and persists intel for every competitor URL.
func (p *Pipeline) MonitorCompetitors(ctx context.Context) (StageResult, error) {
	if !p.portReady() {
		return StageResult{Stage: StageCompetitors}, fmt.Errorf("%s skipped: %w", StageCompetitors, domain.ErrPortUnavailable)
	}

	started := time.Now()
	processed, failed := p.forEach(ctx, StageCompetitors, p.opts.Competitors, func(ctx context.Context, url string) error {
		_, err := p.AnalyzeCompetitor(ctx, url)
		return err
	})
	return p.finishStage(StageCompetitors, started, processed, failed), nil
}

func (p *Pipeline) AnalyzeCompetitor(ctx context.Context, url string) (domain.CompetitorIntel, error) {
	intel, err := p.deps.Collector.Collect(ctx, url)
	if err != nil {
		return domain.CompetitorIntel{}, err
	}

	p.persist(ctx, domain.CategoryCompetitors, "intel-"+p.newID(), intel)
	p.publish(domain.EventIntel, intel)

	p.log.Info("competitor analyzed", "url", url, "opportunities", len(intel.Opportunities))
	return intel, nil
}

// DetectOpportunities runs every enabled strategy over the accumulated
// opportunities and creates one task per recommendation.
func (p *Pipeline) DetectOpportunities(ctx context.Context) ([]domain.Task, error) {
	started := time.Now()
	patterns := strategy.AnalyzePatterns(p.Opportunities(), p.opts.HighPriorityThreshold).WithPending(p.Tasks())

	var recs []domain.Recommendation
	for _, s := range p.deps.Strategies {
		if !s.Enabled() {
			continue
		}
		out, err := s.Evaluate(ctx, patterns)
		if err != nil {
			p.log.Error("strategy evaluation failed", "strategy", s.Name(), "error", err)
			continue
		}
		p.log.Debug("strategy evaluated", "strategy", s.Name(), "recommendations", len(out))
		recs = append(recs, out...)
	}

	tasks := make([]domain.Task, 0, len(recs))
	failed := 0
	for _, rec := range recs {
		t, err := p.CreateTask(ctx, rec)
		if err != nil {
			failed++
			p.log.Warn("task did not complete", "task", t.ID, "type", t.Type, "error", err)
		}
		tasks = append(tasks, t)
	}

	p.finishStage(StageDetection, started, len(tasks), failed)
	return tasks, nil
}

// OptimizeProjects analyzes each tracked project and applies the safe
// automated suggestions.
func (p *Pipeline) OptimizeProjects(ctx context.Context) (StageResult, error) {
	started := time.Now()
	processed, failed, applied := 0, 0, 0

	for _, proj := range p.opts.Projects {
		res, err := p.deps.Optimizer.Optimize(ctx, proj)
		if err != nil {
			failed++
			p.log.Warn("project optimization failed", "project", proj.ID, "error", err)
			continue
		}
		processed++
		applied += len(res.Applied)
		p.log.Info("project optimized", "project", proj.ID, "suggestions", len(res.Suggestions), "applied", len(res.Applied))
	}

	p.deps.Tracker.RecordOptimizations(applied)
	return p.finishStage(StageOptimization, started, processed, failed), nil
}

// GenerateReport emits and persists the daily report.
func (p *Pipeline) GenerateReport(ctx context.Context) (domain.Report, error) {
	started := time.Now()
	r := p.deps.Tracker.Emit(p.now())

	p.persist(ctx, domain.CategoryReports, "report-"+r.Date, r)
	p.publish(domain.EventReport, r)
	performance.LogReport(p.log, r, p.deps.Tracker.Mode())

	p.finishStage(StageReport, started, 1, 0)
	return r, nil
}

// QuickScan reports cached markets at or above the high priority threshold.
// It never fetches.
func (p *Pipeline) QuickScan(context.Context) []domain.Opportunity {
	hot := p.deps.Cache.AtLeast(p.opts.HighPriorityThreshold)
	for _, o := range hot {
		p.log.Info("high priority market", "market", o.Market, "priority", o.Priority, "age", p.now().Sub(o.Timestamp).Round(time.Second))
	}
	p.log.Debug("quick scan complete", "hot", len(hot))
	return hot
}

// HealthCheck samples process health and logs a warning on high memory.
func (p *Pipeline) HealthCheck(context.Context) performance.Health {
	h := performance.CheckHealth(p.deps.HeapReader, p.opts.HeapWarnMB)
	c := p.Counts()
	h.Opportunities = c.Opportunities
	h.Tasks = c.Tasks
	h.PortAvailable = p.portReady()
	performance.LogHealth(p.log, h)
	return h
}
