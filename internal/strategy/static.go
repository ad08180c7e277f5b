package strategy

import (
	"context"

	"autopilot/internal/domain"
)

// Static always recommends the same automated clone and optimize pair.
type Static struct {
	enabled bool
}

func NewStatic(enabled bool) *Static {
	return &Static{enabled: enabled}
}

func (s *Static) Name() string  { return "static" }
func (s *Static) Enabled() bool { return s.enabled }

func (s *Static) Evaluate(context.Context, Patterns) ([]domain.Recommendation, error) {
	return []domain.Recommendation{
		{
			Type:        domain.TaskClone,
			Title:       "Clone trending competitor feature",
			Description: "High-demand feature identified in competitor analysis",
			Priority:    domain.PriorityHigh,
			Automated:   true,
		},
		{
			Type:        domain.TaskOptimize,
			Title:       "Performance optimization opportunity",
			Description: "Website speed improvements detected",
			Priority:    domain.PriorityMedium,
			Automated:   true,
		},
	}, nil
}
