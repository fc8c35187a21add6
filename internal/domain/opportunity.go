package domain

import "time"

// Confidence grades how trustworthy an opportunity is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank orders confidences for sorting: high < medium < low.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 0
	case ConfidenceMedium:
		return 1
	default:
		return 2
	}
}

// ParseConfidence maps a config string to a Confidence. Unknown values map to
// ConfidenceLow.
func ParseConfidence(s string) Confidence {
	switch Confidence(s) {
	case ConfidenceHigh, ConfidenceMedium:
		return Confidence(s)
	default:
		return ConfidenceLow
	}
}

// ArbitrageOpportunity is a scored cross-venue price discrepancy for one
// real-world event.
type ArbitrageOpportunity struct {
	Platforms []string           `json:"platforms"`
	Prices    map[string]float64 `json:"prices"`
	Volumes   map[string]float64 `json:"volumes"`
	MarketIDs map[string]string  `json:"market_ids"`
	Titles    map[string]string  `json:"titles"`

	CanonicalTitle string   `json:"canonical_title"`
	Subjects       []string `json:"subjects"`

	BestBuyPlatform  string  `json:"best_buy_platform"`
	BestBuyPrice     float64 `json:"best_buy_price"`
	BestSellPlatform string  `json:"best_sell_platform"`
	BestSellPrice    float64 `json:"best_sell_price"`

	Spread          float64 `json:"spread"`
	SpreadPercent   float64 `json:"spread_percent"`
	ProfitPotential float64 `json:"profit_potential"`

	Confidence       Confidence `json:"confidence"`
	MatchScore       float64    `json:"match_score"`
	FeasibilityScore float64    `json:"feasibility_score"`
	FeasibilityLabel string     `json:"feasibility_label"`

	MinSideVolume            float64 `json:"min_side_volume"`
	EstimatedSlippagePercent float64 `json:"estimated_slippage_percent"`

	StrategySummary string   `json:"strategy_summary"`
	StrategySteps   []string `json:"strategy_steps"`
}

// PlatformPair returns the "buy→sell" label of the opportunity.
func (o ArbitrageOpportunity) PlatformPair() string {
	return o.BestBuyPlatform + "→" + o.BestSellPlatform
}

// ScanState names a state of the scan controller.
type ScanState string

const (
	ScanIndexing              ScanState = "indexing"
	ScanPairwise              ScanState = "pairwise_scan"
	ScanExpansion             ScanState = "expansion"
	ScanDedup                 ScanState = "dedup"
	ScanRanking               ScanState = "ranking"
	ScanDone                  ScanState = "done"
	ScanPartialBudgetExceeded ScanState = "partial_budget_exceeded"
)

// ScanStats aggregates counters over one scan.
type ScanStats struct {
	Count                int      `json:"count"`
	TotalFound           int      `json:"total_found"`
	AvgSpreadPercent     float64  `json:"avg_spread_percent"`
	TotalProfitPotential float64  `json:"total_profit_potential"`
	PlatformPairs        []string `json:"platform_pairs"`
	PlatformPairCount    int      `json:"platform_pair_count"`

	RecordsIndexed      int `json:"records_indexed"`
	PlatformsIndexed    int `json:"platforms_indexed"`
	CandidatesEvaluated int `json:"candidates_evaluated"`
	PairsMatched        int `json:"pairs_matched"`

	ScanTimeSeconds float64   `json:"scan_time_seconds"`
	BudgetSeconds   float64   `json:"budget_seconds"`
	Partial         bool      `json:"partial"`
	FinalState      ScanState `json:"final_state"`
}

// ScanResult is the full output of one scan together with the parameters
// that produced it.
type ScanResult struct {
	ID            string                 `json:"id"`
	Opportunities []ArbitrageOpportunity `json:"opportunities"`
	Stats         ScanStats              `json:"stats"`
	Params        ScanParams             `json:"params"`
	ComputedAt    time.Time              `json:"computed_at"`
}

// ScanParams are the per-request knobs that key the result cache.
type ScanParams struct {
	MinSpreadPercent float64 `json:"min_spread_percent"`
	MinMatchScore    float64 `json:"min_match_score"`
	Limit            int     `json:"limit"`
}
