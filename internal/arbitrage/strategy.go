package arbitrage

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

var one = decimal.NewFromInt(1)

// usd renders an amount as dollars with four decimals.
func usd(d decimal.Decimal) string {
	return "$" + d.StringFixed(4)
}

// Price arithmetic for the explanation is done in decimal so that, for
// example, 1 - 0.08 prints as 0.9200 rather than 0.9199999.
func legs(opp domain.ArbitrageOpportunity) (yes, no, cost, edge decimal.Decimal) {
	yes = decimal.NewFromFloat(opp.BestBuyPrice)
	sellYes := decimal.NewFromFloat(opp.BestSellPrice)
	no = one.Sub(sellYes)
	cost = yes.Add(no)
	edge = one.Sub(cost)
	return yes, no, cost, edge
}

func strategySummary(opp domain.ArbitrageOpportunity) string {
	yes, no, _, edge := legs(opp)
	return fmt.Sprintf("Buy YES on %s at %s → buy NO on %s at %s → lock %s per contract pair (%.2f%%)",
		opp.BestBuyPlatform, usd(yes),
		opp.BestSellPlatform, usd(no),
		usd(edge), opp.SpreadPercent)
}

func strategySteps(opp domain.ArbitrageOpportunity) []string {
	yes, no, cost, edge := legs(opp)
	contracts := decimal.NewFromFloat(contractSize(opp.MinSideVolume)).Floor()
	profit := decimal.NewFromFloat(opp.ProfitPotential).Round(2)

	return []string{
		fmt.Sprintf("1. Buy YES on %s at %s (market %s).",
			opp.BestBuyPlatform, usd(yes), opp.MarketIDs[opp.BestBuyPlatform]),
		fmt.Sprintf("2. Buy NO on %s at %s, the same as selling YES there at %s (market %s).",
			opp.BestSellPlatform, usd(no), usd(decimal.NewFromFloat(opp.BestSellPrice)),
			opp.MarketIDs[opp.BestSellPlatform]),
		fmt.Sprintf("3. Combined cost per contract pair: %s.", usd(cost)),
		fmt.Sprintf("4. If the event resolves YES, the %s YES contract pays $1.00; if it resolves NO, the %s NO contract pays $1.00.",
			opp.BestBuyPlatform, opp.BestSellPlatform),
		fmt.Sprintf("5. Either outcome settles the pair at $1.00, locking %s per pair before fees and slippage (est. %.1f%%).",
			usd(edge), opp.EstimatedSlippagePercent),
		fmt.Sprintf("6. Size up to %s contracts against the thinner side's volume of %s: potential profit $%s.",
			contracts.String(), decimal.NewFromFloat(opp.MinSideVolume).StringFixed(0), profit.StringFixed(2)),
	}
}
