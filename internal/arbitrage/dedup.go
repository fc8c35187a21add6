package arbitrage

import (
	"slices"
	"strings"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// DedupKey identifies the real-world event behind an opportunity: the subjects
// of its canonical title together with the platforms it spans.
func DedupKey(opp domain.ArbitrageOpportunity) string {
	return strings.Join(sortedCopy(opp.Subjects), ",") + "|" + strings.Join(sortedCopy(opp.Platforms), ",")
}

// Dedup keeps one opportunity per DedupKey. Of two colliding opportunities the
// one with the larger (MatchScore, SpreadPercent) survives; on an exact tie the
// earlier one does. Output preserves the order in which keys were first seen,
// so Dedup(Dedup(x)) equals Dedup(x).
func Dedup(opps []domain.ArbitrageOpportunity) []domain.ArbitrageOpportunity {
	if len(opps) == 0 {
		return nil
	}
	slot := make(map[string]int, len(opps))
	out := make([]domain.ArbitrageOpportunity, 0, len(opps))
	for _, o := range opps {
		key := DedupKey(o)
		i, seen := slot[key]
		if !seen {
			slot[key] = len(out)
			out = append(out, o)
			continue
		}
		if better(o, out[i]) {
			out[i] = o
		}
	}
	return out
}

func better(a, b domain.ArbitrageOpportunity) bool {
	if a.MatchScore != b.MatchScore {
		return a.MatchScore > b.MatchScore
	}
	return a.SpreadPercent > b.SpreadPercent
}

func sortedCopy(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}
