package arbitrage

import (
	"math"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/matching"
)

const (
	// MinExecutableVolume is the thinnest side an opportunity may have.
	MinExecutableVolume = 10.0
	// MaxSpreadPercent marks any wider spread as a data error.
	MaxSpreadPercent = 100.0

	// Position sizing: a fraction of the thinner side's volume, capped.
	sizeFraction = 0.02
	maxContracts = 5000.0
)

// Feasibility weights.
const (
	weightVolume  = 0.45
	weightBalance = 0.25
	weightSpread  = 0.30
)

// ScoreGroup converts a group into a scored opportunity. It reports false
// when the group is not tradeable: fewer than two priced platforms, a price
// outside (0, 1], a non-positive spread, a spread below minSpreadPercent or
// above MaxSpreadPercent, or a thin side below MinExecutableVolume.
func ScoreGroup(ex *matching.Extractor, g *Group, minSpreadPercent float64) (domain.ArbitrageOpportunity, bool) {
	if g == nil || !g.Valid() {
		return domain.ArbitrageOpportunity{}, false
	}
	platforms := g.Platforms()
	canonical := g.Canonical()

	opp := domain.ArbitrageOpportunity{
		Platforms:      platforms,
		Prices:         make(map[string]float64, len(platforms)),
		Volumes:        make(map[string]float64, len(platforms)),
		MarketIDs:      make(map[string]string, len(platforms)),
		Titles:         make(map[string]string, len(platforms)),
		CanonicalTitle: canonical.Title,
		Subjects:       ex.Subjects(canonical.Title).Sorted(),
		MatchScore:     g.AvgScore(),
	}

	var buy, sell domain.MarketRecord
	minVol, maxVol := math.Inf(1), 0.0
	for i, p := range platforms {
		r, _ := g.Member(p)
		if !r.HasValidPrice() {
			return domain.ArbitrageOpportunity{}, false
		}
		opp.Prices[p] = r.Price
		opp.Volumes[p] = r.Volume
		opp.MarketIDs[p] = r.ID
		opp.Titles[p] = r.Title
		if i == 0 || r.Price < buy.Price {
			buy = r
		}
		if i == 0 || r.Price > sell.Price {
			sell = r
		}
		minVol = math.Min(minVol, r.Volume)
		maxVol = math.Max(maxVol, r.Volume)
	}

	spread := sell.Price - buy.Price
	spreadPct := spread / buy.Price * 100
	if spread <= 0 || spreadPct < minSpreadPercent || spreadPct > MaxSpreadPercent {
		return domain.ArbitrageOpportunity{}, false
	}
	if minVol < MinExecutableVolume {
		return domain.ArbitrageOpportunity{}, false
	}

	opp.BestBuyPlatform, opp.BestBuyPrice = buy.Platform, buy.Price
	opp.BestSellPlatform, opp.BestSellPrice = sell.Platform, sell.Price
	opp.Spread = spread
	opp.SpreadPercent = spreadPct
	opp.MinSideVolume = minVol
	opp.ProfitPotential = spread * contractSize(minVol)

	opp.FeasibilityScore = FeasibilityScore(minVol, maxVol, spreadPct)
	opp.FeasibilityLabel = FeasibilityLabel(opp.FeasibilityScore)
	opp.EstimatedSlippagePercent = EstimatedSlippage(minVol)
	opp.Confidence = ConfidenceFor(spreadPct, minVol)

	opp.StrategySummary = strategySummary(opp)
	opp.StrategySteps = strategySteps(opp)
	return opp, true
}

func contractSize(minVol float64) float64 {
	return math.Min(minVol*sizeFraction, maxContracts)
}

// FeasibilityScore combines volume depth, cross-venue volume balance and spread
// realism into a 0-100 score.
func FeasibilityScore(minVol, maxVol, spreadPct float64) float64 {
	volScore := math.Log10(math.Max(minVol, 1)) * 20
	volScore = math.Max(0, math.Min(100, volScore))

	balance := 0.0
	if maxVol > 0 {
		balance = minVol / maxVol * 100
	}
	return weightVolume*volScore + weightBalance*balance + weightSpread*spreadScore(spreadPct)
}

// spreadScore favours moderate spreads; very wide ones are usually stale or
// mismatched.
func spreadScore(pct float64) float64 {
	switch {
	case pct <= 2:
		return 40
	case pct <= 10:
		return 100
	case pct <= 25:
		return 70
	case pct <= 50:
		return 30
	default:
		return 10
	}
}

// FeasibilityLabel grades a feasibility score.
func FeasibilityLabel(score float64) string {
	switch {
	case score >= 70:
		return "excellent"
	case score >= 50:
		return "good"
	case score >= 30:
		return "fair"
	default:
		return "poor"
	}
}

// EstimatedSlippage returns the expected slippage percentage for a side with
// the given volume.
func EstimatedSlippage(minVol float64) float64 {
	switch {
	case minVol > 100_000:
		return 0.5
	case minVol > 50_000:
		return 1.0
	case minVol > 10_000:
		return 2.0
	case minVol > 5_000:
		return 3.5
	default:
		return 5.0
	}
}

// ConfidenceFor grades an opportunity from its spread and thinner side.
func ConfidenceFor(spreadPct, minVol float64) domain.Confidence {
	switch {
	case spreadPct > 50:
		return domain.ConfidenceLow
	case spreadPct > 15 && minVol > 10_000:
		return domain.ConfidenceHigh
	case spreadPct > 5 && minVol > 5_000:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}
