package matching

import (
	"testing"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

func kalshiRecords(titles ...string) []domain.MarketRecord {
	out := make([]domain.MarketRecord, len(titles))
	for i, title := range titles {
		out[i] = domain.MarketRecord{
			Platform: domain.PlatformKalshi,
			ID:       "K" + string(rune('A'+i)),
			Title:    title,
			Price:    0.5,
			Volume:   1000,
		}
	}
	return out
}

func positions(cands []Candidate) []int {
	out := make([]int, len(cands))
	for i, c := range cands {
		out[i] = c.Pos
	}
	return out
}

func TestIndexCandidates(t *testing.T) {
	ex := NewExtractor()
	ix := BuildIndex(ex, domain.PlatformKalshi, kalshiRecords(
		"Will Trump buy Greenland?",
		"Will Bitcoin reach $150k?",
		"Greenland independence referendum",
		"Will it happen?",
		"",
	))

	if ix.Platform() != domain.PlatformKalshi {
		t.Errorf("Platform = %q, want %q", ix.Platform(), domain.PlatformKalshi)
	}
	if ix.Len() != 5 {
		t.Errorf("Len = %d, want 5", ix.Len())
	}

	tests := []struct {
		name  string
		query string
		floor int
		want  []int
	}{
		{"shared entity", "Trump to acquire Greenland?", 1, []int{0, 2}},
		{"alias folded", "BTC above 150k", 1, []int{1}},
		{"stem key", "Trump conviction", 1, []int{0}},
		{"floor excludes weak overlap", "Buy now", 2, []int{}},
		{"floor one keeps weak overlap", "Buy now", 1, []int{0}},
		{"floor counts tokens not keys", "Will Denmark sell Greenland?", 2, []int{}},
		{"floor one keeps single token", "Will Denmark sell Greenland?", 1, []int{0, 2}},
		{"floor two keeps two tokens", "Trump wants Greenland", 2, []int{0}},
		{"identical title without entities", "Will it happen?", 1, []int{3}},
		{"empty title", "", 1, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := positions(ix.Candidates(ex, tt.query, tt.floor))
			if len(got) != len(tt.want) {
				t.Fatalf("Candidates(%q) = %v, want %v", tt.query, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Candidates(%q)[%d] = %d, want %d", tt.query, i, got[i], tt.want[i])
				}
			}
		})
	}
}

// Every pair brute force scores above zero must be reachable through the
// index at floor 1.
func TestIndexHasNoFalseNegatives(t *testing.T) {
	titles := []string{
		"Will Trump buy Greenland?",
		"Trump to acquire Greenland?",
		"Will Trump be convicted?",
		"Will Doug Burgum leave the Trump Cabinet?",
		"Will BTC hit $100k in 2025?",
		"Dems win the House?",
		"Will it happen?",
		"Pokémon Café opens",
	}
	targets := kalshiRecords(
		"Trump Greenland purchase",
		"Trump conviction odds",
		"Will Marco Rubio leave the Trump Cabinet?",
		"Bitcoin above $100,000",
		"Will Democrats win the House in 2026?",
		"Will it happen?",
		"Pokemon Cafe opens",
		"Eagles win the Super Bowl",
	)

	ex := NewExtractor()
	ix := BuildIndex(ex, domain.PlatformKalshi, targets)
	for _, title := range titles {
		found := make(map[int]bool)
		for _, c := range ix.Candidates(ex, title, 1) {
			found[c.Pos] = true
		}
		for pos, target := range targets {
			if ex.Similarity(title, target.Title) > 0 && !found[pos] {
				t.Errorf("title %q scores %v against %q but index missed it",
					title, ex.Similarity(title, target.Title), target.Title)
			}
		}
	}
}
