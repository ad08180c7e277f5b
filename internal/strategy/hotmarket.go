package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"autopilot/internal/domain"
)

// HotMarket asks for manual research on every market that scored at or
// above the threshold. Research needs a human, so the tasks are never
// automated, and a market with research still pending is not asked again.
type HotMarket struct {
	enabled bool
	// urgent is the priority from which a research task is marked high.
	urgent int
	log    *slog.Logger
}

func NewHotMarket(enabled bool, urgent int, logger *slog.Logger) *HotMarket {
	if logger == nil {
		logger = slog.Default()
	}
	return &HotMarket{enabled: enabled, urgent: urgent, log: logger.With("component", "hot-market")}
}

func (h *HotMarket) Name() string  { return "hot-market" }
func (h *HotMarket) Enabled() bool { return h.enabled }

func (h *HotMarket) Evaluate(_ context.Context, p Patterns) ([]domain.Recommendation, error) {
	recs := make([]domain.Recommendation, 0, len(p.HotMarkets))
	skipped := 0
	for _, o := range p.HotMarkets {
		title := researchTitle(o.Market)
		if p.HasPending(domain.TaskResearch, title) {
			skipped++
			continue
		}

		priority := domain.PriorityMedium
		if o.Priority >= h.urgent {
			priority = domain.PriorityHigh
		}
		recs = append(recs, domain.Recommendation{
			Type:        domain.TaskResearch,
			Title:       title,
			Description: describeTrends(o),
			Priority:    priority,
			Automated:   false,
		})
	}

	if len(recs) > 0 || skipped > 0 {
		h.log.Debug("hot markets found", "new", len(recs), "already_pending", skipped)
	}
	return recs, nil
}

func researchTitle(market string) string {
	return fmt.Sprintf("Research %s", market)
}

func describeTrends(o domain.Opportunity) string {
	if len(o.Trends) == 0 {
		return fmt.Sprintf("Scored %d with no trend snippets", o.Priority)
	}
	return fmt.Sprintf("Scored %d on trends: %s", o.Priority, strings.Join(o.Trends, "; "))
}
