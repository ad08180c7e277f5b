// Package collector extracts competitor intelligence from competitor pages.
package collector

import (
	"context"
	"fmt"
	"time"

	"autopilot/internal/domain"
)

const (
	pricingSelector    = `[class*="price"], [class*="Price"]`
	featureSelector    = "h2, h3, .feature"
	technologySelector = "script[src]"

	maxFeatures     = 10
	maxTechnologies = 5
)

// Collector opens one competitor page per call and derives the gaps worth
// acting on.
type Collector struct {
	port domain.Port
	now  func() time.Time
}

func NewCollector(port domain.Port) *Collector {
	return &Collector{port: port, now: time.Now}
}

// Collect scrapes url and returns the intel record. The page is closed on
// every path.
func (c *Collector) Collect(ctx context.Context, url string) (domain.CompetitorIntel, error) {
	doc, err := c.port.Open(ctx, url, domain.WaitNetworkIdle)
	if err != nil {
		return domain.CompetitorIntel{}, err
	}
	defer doc.Close()

	data, err := extract(ctx, doc)
	if err != nil {
		return domain.CompetitorIntel{}, &domain.FetchError{Target: url, Err: err}
	}

	return domain.CompetitorIntel{
		URL:           url,
		Data:          data,
		Timestamp:     c.now(),
		Opportunities: Opportunities(data),
	}, nil
}

func extract(ctx context.Context, doc domain.Document) (domain.CompetitorData, error) {
	pricing, err := doc.Texts(ctx, pricingSelector)
	if err != nil {
		return domain.CompetitorData{}, fmt.Errorf("extracting pricing: %w", err)
	}
	features, err := doc.Texts(ctx, featureSelector)
	if err != nil {
		return domain.CompetitorData{}, fmt.Errorf("extracting features: %w", err)
	}
	scripts, err := doc.Attrs(ctx, technologySelector, "src")
	if err != nil {
		return domain.CompetitorData{}, fmt.Errorf("extracting technologies: %w", err)
	}

	return domain.CompetitorData{
		Title:        doc.Title(),
		Pricing:      nonNil(pricing),
		Features:     head(features, maxFeatures),
		Technologies: head(scripts, maxTechnologies),
	}, nil
}

// Opportunities derives the fixed gap list: a pricing gap when any pricing
// text was found, and a feature gap always.
func Opportunities(data domain.CompetitorData) []domain.CompetitorOpportunity {
	var opps []domain.CompetitorOpportunity
	if len(data.Pricing) > 0 {
		opps = append(opps, domain.CompetitorOpportunity{
			Type:        "pricing",
			Description: "Competitor pricing analysis reveals market gaps",
			Priority:    domain.PriorityMedium,
		})
	}
	opps = append(opps, domain.CompetitorOpportunity{
		Type:        "features",
		Description: "Feature analysis complete - gaps identified",
		Priority:    domain.PriorityHigh,
	})
	return opps
}

func head(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	return nonNil(s)
}

// nonNil keeps empty lists as [] rather than null in persisted JSON.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
