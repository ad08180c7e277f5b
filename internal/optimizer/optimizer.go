// Package optimizer measures tracked projects and applies the optimizations
// that are safe to run unattended.
package optimizer

import (
	"context"
	"fmt"
	"log/slog"
)

type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Performance is a 0-100 score per dimension plus raw traffic.
type Performance struct {
	Speed      int `json:"speed"`
	SEO        int `json:"seo"`
	Conversion int `json:"conversion"`
	Traffic    int `json:"traffic"`
}

type Suggestion struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Safe        bool   `json:"safe"`
	Automated   bool   `json:"automated"`
}

// Result is the outcome of optimizing one project.
type Result struct {
	Project     Project      `json:"project"`
	Performance Performance  `json:"performance"`
	Suggestions []Suggestion `json:"suggestions"`
	Applied     []Suggestion `json:"applied"`
}

// Analyzer produces a performance snapshot for a project.
type Analyzer interface {
	Analyze(ctx context.Context, p Project) (Performance, error)
}

// Applier carries out one suggestion.
type Applier interface {
	Apply(ctx context.Context, p Project, s Suggestion) error
}

// StaticAnalyzer reports the same snapshot for every project.
type StaticAnalyzer struct {
	Snapshot Performance
}

func NewStaticAnalyzer() StaticAnalyzer {
	return StaticAnalyzer{Snapshot: Performance{Speed: 85, SEO: 75, Conversion: 65, Traffic: 1000}}
}

func (a StaticAnalyzer) Analyze(context.Context, Project) (Performance, error) {
	return a.Snapshot, nil
}

// LogApplier records applied suggestions in the log.
type LogApplier struct {
	Logger *slog.Logger
}

func (a LogApplier) Apply(_ context.Context, p Project, s Suggestion) error {
	log := a.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("optimization applied", "project", p.ID, "type", s.Type, "description", s.Description)
	return nil
}

const (
	speedTarget      = 90
	seoTarget        = 80
	conversionTarget = 70
)

// Suggest derives optimizations from a snapshot. Only the speed fix is both
// safe and automated.
func Suggest(perf Performance) []Suggestion {
	var out []Suggestion
	if perf.Speed < speedTarget {
		out = append(out, Suggestion{
			Type:        "speed",
			Description: "Optimize images and minify CSS/JS",
			Safe:        true,
			Automated:   true,
		})
	}
	if perf.SEO < seoTarget {
		out = append(out, Suggestion{
			Type:        "seo",
			Description: "Add missing meta descriptions and structured data",
			Safe:        true,
		})
	}
	if perf.Conversion < conversionTarget {
		out = append(out, Suggestion{
			Type:        "conversion",
			Description: "A/B test the primary call to action",
		})
	}
	return out
}

type Optimizer struct {
	analyzer Analyzer
	applier  Applier
	logger   *slog.Logger
}

func New(analyzer Analyzer, applier Applier, logger *slog.Logger) *Optimizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{analyzer: analyzer, applier: applier, logger: logger.With("component", "optimizer")}
}

// Optimize analyzes p and applies every safe and automated suggestion. A
// failing suggestion is logged and skipped.
func (o *Optimizer) Optimize(ctx context.Context, p Project) (Result, error) {
	perf, err := o.analyzer.Analyze(ctx, p)
	if err != nil {
		return Result{}, fmt.Errorf("analyzing %s: %w", p.ID, err)
	}

	res := Result{Project: p, Performance: perf, Suggestions: Suggest(perf)}
	for _, s := range res.Suggestions {
		if !s.Safe || !s.Automated {
			continue
		}
		if err := o.applier.Apply(ctx, p, s); err != nil {
			o.logger.Warn("failed to apply optimization", "project", p.ID, "type", s.Type, "error", err)
			continue
		}
		res.Applied = append(res.Applied, s)
	}
	return res, nil
}
