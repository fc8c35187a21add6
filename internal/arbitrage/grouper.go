package arbitrage

import (
	"sort"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/matching"
)

// Group is one real-world event observed on several platforms, with at most
// one record per platform. The anchor is the record that seeded the group and
// drives expansion; the canonical record names the event (see Canonical).
type Group struct {
	anchor  domain.MarketRecord
	members map[string]domain.MarketRecord
	scores  []float64
}

// NewGroup starts a group anchored at r.
func NewGroup(r domain.MarketRecord) *Group {
	return &Group{
		anchor:  r,
		members: map[string]domain.MarketRecord{r.Platform: r},
	}
}

// Add joins r to the group with the similarity score that matched it. It
// refuses a second record for a platform already present and any record
// whose price lies outside (0, 1].
func (g *Group) Add(r domain.MarketRecord, score float64) bool {
	if _, dup := g.members[r.Platform]; dup {
		return false
	}
	if !r.HasValidPrice() {
		return false
	}
	g.members[r.Platform] = r
	g.scores = append(g.scores, score)
	return true
}

// Anchor returns the seeding record.
func (g *Group) Anchor() domain.MarketRecord { return g.anchor }

// canonicalPriority orders the venues whose record names a group's event.
// Venues that split one event into many sub-markets come last. Platforms not
// listed rank after these, in lexical order.
var canonicalPriority = []string{
	domain.PlatformPolymarket,
	domain.PlatformManifold,
	domain.PlatformKalshi,
}

// Canonical returns the member that names the group's event: the record of
// the highest-priority platform present. It does not depend on which record
// seeded the group.
func (g *Group) Canonical() domain.MarketRecord {
	for _, p := range canonicalPriority {
		if r, ok := g.members[p]; ok {
			return r
		}
	}
	platforms := g.Platforms()
	if len(platforms) == 0 {
		return domain.MarketRecord{}
	}
	return g.members[platforms[0]]
}

// Has reports whether the group already holds a record for platform.
func (g *Group) Has(platform string) bool {
	_, ok := g.members[platform]
	return ok
}

// Member returns the record for platform.
func (g *Group) Member(platform string) (domain.MarketRecord, bool) {
	r, ok := g.members[platform]
	return r, ok
}

// Platforms returns the member platforms in lexical order.
func (g *Group) Platforms() []string {
	out := make([]string, 0, len(g.members))
	for p := range g.members {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Size returns the number of member platforms.
func (g *Group) Size() int { return len(g.members) }

// AvgScore is the mean of the collected scores, or 0 for a lone anchor.
func (g *Group) AvgScore() float64 {
	if len(g.scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range g.scores {
		sum += s
	}
	return sum / float64(len(g.scores))
}

// Valid reports whether at least two platforms contribute a priced record.
func (g *Group) Valid() bool {
	n := 0
	for _, r := range g.members {
		if r.HasValidPrice() {
			n++
		}
	}
	return n >= 2
}

// Grouper matches records across platform indexes and expands matched pairs
// into multi-platform groups.
type Grouper struct {
	ex      *matching.Extractor
	indexes map[string]*matching.Index
	order   []string

	minScore    float64
	slugOverlap float64
	floor       int

	evaluated int
}

// GrouperConfig configures a Grouper.
type GrouperConfig struct {
	Extractor   *matching.Extractor
	Indexes     []*matching.Index
	MinScore    float64
	SlugOverlap float64
	TokenFloor  int
}

// NewGrouper builds a Grouper over the given per-platform indexes.
func NewGrouper(cfg GrouperConfig) *Grouper {
	g := &Grouper{
		ex:          cfg.Extractor,
		indexes:     make(map[string]*matching.Index, len(cfg.Indexes)),
		minScore:    cfg.MinScore,
		slugOverlap: cfg.SlugOverlap,
		floor:       cfg.TokenFloor,
	}
	for _, ix := range cfg.Indexes {
		g.indexes[ix.Platform()] = ix
		g.order = append(g.order, ix.Platform())
	}
	sort.Strings(g.order)
	return g
}

// Evaluated returns the number of candidate pairs scored so far.
func (g *Grouper) Evaluated() int { return g.evaluated }

// Match scores a seed record against a candidate and reports whether the pair
// clears the minimum score and the slug cross-check.
func (g *Grouper) Match(seed, cand domain.MarketRecord) (float64, bool) {
	if !seed.HasValidPrice() || !cand.HasValidPrice() {
		return 0, false
	}
	g.evaluated++
	score := g.ex.Similarity(seed.Title, cand.Title)
	if score < g.minScore {
		return score, false
	}
	if !g.ex.SlugCompatible(seed, cand, g.slugOverlap) {
		return score, false
	}
	return score, true
}

// Expand searches every platform not yet in the group with the anchor and adds
// the best scoring match per platform. Candidates are compared in index
// order; the first of equally scoring candidates wins.
func (g *Grouper) Expand(grp *Group) {
	anchor := grp.Anchor()
	for _, platform := range g.order {
		if grp.Has(platform) {
			continue
		}
		ix := g.indexes[platform]

		var (
			best      domain.MarketRecord
			bestScore float64
			found     bool
		)
		for _, c := range ix.Candidates(g.ex, anchor.Title, g.floor) {
			score, ok := g.Match(anchor, c.Record)
			if !ok {
				continue
			}
			if !found || score > bestScore {
				best, bestScore, found = c.Record, score, true
			}
		}
		if found {
			grp.Add(best, bestScore)
		}
	}
}
