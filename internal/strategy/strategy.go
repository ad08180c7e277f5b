package strategy

import (
	"context"
	"sort"

	"autopilot/internal/domain"
)

// Patterns is what opportunity detection knows when it asks strategies for
// recommendations.
type Patterns struct {
	// MarketTrends is every opportunity accumulated so far, oldest first.
	MarketTrends []domain.Opportunity
	// HotMarkets holds the latest opportunity of each market whose priority
	// reached the threshold, highest first.
	HotMarkets []domain.Opportunity
	// Pending marks the type and title of every task still waiting to run,
	// so strategies can avoid asking for the same work twice.
	Pending map[pendingKey]struct{}
}

type pendingKey struct {
	typ   domain.TaskType
	title string
}

// WithPending records the pending tasks among tasks.
func (p Patterns) WithPending(tasks []domain.Task) Patterns {
	p.Pending = make(map[pendingKey]struct{})
	for _, t := range tasks {
		if t.Status == domain.TaskPending {
			p.Pending[pendingKey{t.Type, t.Title}] = struct{}{}
		}
	}
	return p
}

// HasPending reports whether a task of typ and title is already waiting.
func (p Patterns) HasPending(typ domain.TaskType, title string) bool {
	_, ok := p.Pending[pendingKey{typ, title}]
	return ok
}

// Strategy turns patterns into recommendations.
type Strategy interface {
	Name() string
	Evaluate(ctx context.Context, p Patterns) ([]domain.Recommendation, error)
	Enabled() bool
}

// AnalyzePatterns builds Patterns from the accumulated opportunities.
func AnalyzePatterns(opps []domain.Opportunity, threshold int) Patterns {
	latest := make(map[string]domain.Opportunity)
	for _, o := range opps {
		if cur, ok := latest[o.Market]; !ok || !o.Timestamp.Before(cur.Timestamp) {
			latest[o.Market] = o
		}
	}

	var hot []domain.Opportunity
	for _, o := range latest {
		if o.Priority >= threshold {
			hot = append(hot, o)
		}
	}
	sort.Slice(hot, func(i, j int) bool {
		if hot[i].Priority != hot[j].Priority {
			return hot[i].Priority > hot[j].Priority
		}
		return hot[i].Market < hot[j].Market
	})

	return Patterns{MarketTrends: opps, HotMarkets: hot}
}
