package domain

// EngineConfig gates the scheduled stages.
type EngineConfig struct {
	MarketScanning       bool `json:"marketScanning" toml:"market_scanning"`
	CompetitorMonitoring bool `json:"competitorMonitoring" toml:"competitor_monitoring"`
	OpportunityDetection bool `json:"opportunityDetection" toml:"opportunity_detection"`
	AutoOptimization     bool `json:"autoOptimization" toml:"auto_optimization"`
}

// DefaultEngineConfig enables every stage.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MarketScanning:       true,
		CompetitorMonitoring: true,
		OpportunityDetection: true,
		AutoOptimization:     true,
	}
}

// ConfigPatch carries the flags a caller wants to set. Nil fields keep the
// current value.
type ConfigPatch struct {
	MarketScanning       *bool `json:"marketScanning,omitempty"`
	CompetitorMonitoring *bool `json:"competitorMonitoring,omitempty"`
	OpportunityDetection *bool `json:"opportunityDetection,omitempty"`
	AutoOptimization     *bool `json:"autoOptimization,omitempty"`
}

// Merge returns c with every non-nil field of p applied.
func (c EngineConfig) Merge(p ConfigPatch) EngineConfig {
	if p.MarketScanning != nil {
		c.MarketScanning = *p.MarketScanning
	}
	if p.CompetitorMonitoring != nil {
		c.CompetitorMonitoring = *p.CompetitorMonitoring
	}
	if p.OpportunityDetection != nil {
		c.OpportunityDetection = *p.OpportunityDetection
	}
	if p.AutoOptimization != nil {
		c.AutoOptimization = *p.AutoOptimization
	}
	return c
}
