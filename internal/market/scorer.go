package market

import "strings"

const (
	keywordBonus = 30
	trendBonus   = 5
	recencyBonus = 20
	maxPriority  = 100
)

// Scorer computes opportunity priority. It is a pure function of its
// configuration and inputs.
type Scorer struct {
	keywords       []string
	recencyMarkers []string
}

func NewScorer(keywords, recencyMarkers []string) *Scorer {
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return &Scorer{keywords: lowered, recencyMarkers: recencyMarkers}
}

// Score is 30 if the market name contains any keyword (case-insensitive),
// plus 5 per trend, plus 20 if any trend contains a recency marker
// (case-sensitive), clamped to [0, 100].
func (s *Scorer) Score(market string, trends []string) int {
	score := 0

	name := strings.ToLower(market)
	for _, k := range s.keywords {
		if k != "" && strings.Contains(name, k) {
			score += keywordBonus
			break
		}
	}

	score += trendBonus * len(trends)

	if s.hasRecencyMarker(trends) {
		score += recencyBonus
	}

	return clamp(score, 0, maxPriority)
}

// MaxScore is the highest priority a market can reach when sources return at
// most maxTrends snippets.
func MaxScore(maxTrends int) int {
	return clamp(keywordBonus+trendBonus*maxTrends+recencyBonus, 0, maxPriority)
}

func (s *Scorer) hasRecencyMarker(trends []string) bool {
	for _, t := range trends {
		for _, m := range s.recencyMarkers {
			if m != "" && strings.Contains(t, m) {
				return true
			}
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
