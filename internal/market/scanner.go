package market

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jonnyspicer/mango"

	"autopilot/internal/domain"
)

// TrendSource fetches trend snippets for one market name.
type TrendSource interface {
	Trends(ctx context.Context, market string) ([]string, error)
	// NeedsPort reports whether the source scrapes through the browser port.
	NeedsPort() bool
}

// SearchSource reads result headings from a search engine page.
type SearchSource struct {
	port        domain.Port
	urlTemplate string
	suffix      string
	maxTrends   int
}

// NewSearchSource builds a source that opens urlTemplate (one %s for the
// escaped query) for "<market> <suffix>" and keeps the first maxTrends headings.
func NewSearchSource(port domain.Port, urlTemplate, suffix string, maxTrends int) *SearchSource {
	return &SearchSource{port: port, urlTemplate: urlTemplate, suffix: suffix, maxTrends: maxTrends}
}

func (s *SearchSource) NeedsPort() bool { return true }

func (s *SearchSource) Trends(ctx context.Context, market string) ([]string, error) {
	query := strings.TrimSpace(market + " " + s.suffix)
	target := fmt.Sprintf(s.urlTemplate, url.QueryEscape(query))

	doc, err := s.port.Open(ctx, target, domain.WaitNetworkIdle)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	headings, err := doc.Texts(ctx, "h3")
	if err != nil {
		return nil, &domain.FetchError{Target: target, Err: err}
	}
	return firstNonEmpty(headings, s.maxTrends), nil
}

// MarketSearcher is the part of the Manifold client the source uses.
type MarketSearcher interface {
	SearchMarkets(req mango.SearchMarketsRequest) (*[]mango.FullMarket, error)
}

// ManifoldSource treats open Manifold questions that share a word with the
// market name as trend snippets. It needs no browser.
type ManifoldSource struct {
	client    MarketSearcher
	limit     int64
	maxTrends int
}

func NewManifoldSource(client MarketSearcher, limit int64, maxTrends int) *ManifoldSource {
	if limit <= 0 {
		limit = 200
	}
	return &ManifoldSource{client: client, limit: limit, maxTrends: maxTrends}
}

func (s *ManifoldSource) NeedsPort() bool { return false }

func (s *ManifoldSource) Trends(_ context.Context, market string) ([]string, error) {
	markets, err := s.client.SearchMarkets(mango.SearchMarketsRequest{
		Filter: "open",
		Sort:   "liquidity",
		Limit:  s.limit,
	})
	if err != nil {
		return nil, &domain.FetchError{Target: "manifold", Err: fmt.Errorf("searching markets: %w", err)}
	}
	if markets == nil {
		return nil, nil
	}

	words := significantWords(market)
	var questions []string
	for _, m := range *markets {
		q := strings.ToLower(m.Question)
		for _, w := range words {
			if strings.Contains(q, w) {
				questions = append(questions, m.Question)
				break
			}
		}
		if len(questions) == s.maxTrends {
			break
		}
	}
	return questions, nil
}

// significantWords lowercases name and drops words too short to be
// meaningful on their own, except short acronyms like "ai".
func significantWords(name string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(name)) {
		if len(w) >= 4 || w == "ai" {
			out = append(out, w)
		}
	}
	return out
}

func firstNonEmpty(in []string, n int) []string {
	out := make([]string, 0, n)
	for _, s := range in {
		if len(out) == n {
			break
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
