package arbitrage

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// transitions lists the legal moves of the scan controller. Expansion runs
// once per matched pair and hands control back to the pairwise scan.
var transitions = map[domain.ScanState][]domain.ScanState{
	domain.ScanIndexing:  {domain.ScanPairwise, domain.ScanDedup},
	domain.ScanPairwise:  {domain.ScanExpansion, domain.ScanDedup},
	domain.ScanExpansion: {domain.ScanPairwise, domain.ScanDedup},
	domain.ScanDedup:     {domain.ScanRanking},
	domain.ScanRanking:   {domain.ScanDone, domain.ScanPartialBudgetExceeded},
}

// CanTransition reports whether the controller may move from one state to
// another.
func CanTransition(from, to domain.ScanState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type stateMachine struct {
	state  domain.ScanState
	logger *slog.Logger
}

func newStateMachine(logger *slog.Logger) *stateMachine {
	return &stateMachine{state: domain.ScanIndexing, logger: logger}
}

// to moves to next. Illegal moves are logged and ignored.
func (m *stateMachine) to(ctx context.Context, next domain.ScanState) {
	if next == m.state {
		return
	}
	if !CanTransition(m.state, next) {
		m.logger.ErrorContext(ctx, "illegal scan transition",
			slog.String("from", string(m.state)),
			slog.String("to", string(next)),
		)
		return
	}
	// Pairwise and expansion alternate once per matched pair.
	flip := (m.state == domain.ScanPairwise && next == domain.ScanExpansion) ||
		(m.state == domain.ScanExpansion && next == domain.ScanPairwise)
	if !flip {
		m.logger.DebugContext(ctx, "scan state",
			slog.String("from", string(m.state)),
			slog.String("to", string(next)),
		)
	}
	m.state = next
}
