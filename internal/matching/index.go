package matching

import (
	"sort"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

const (
	stemKeyLen     = PrefixMinLen
	stemKeyPrefix  = "~"
	titleKeyPrefix = "#"
)

// Candidate is a record from an indexed platform returned for a query title.
// Shared is the number of entity tokens the two titles have in common.
type Candidate struct {
	Pos    int
	Record domain.MarketRecord
	Shared int
}

// Index is an inverted index over one platform's records.
//
// The keys of a record are its entity tokens, a stem key for every entity of
// at least PrefixMinLen characters, and its normalized title. Any pair that
// Similarity can score above zero therefore shares a key: an exact entity, a
// prefix-stemmed entity pair (which agrees on its first PrefixMinLen
// characters) or an identical normalized title.
type Index struct {
	platform string
	records  []domain.MarketRecord
	postings map[string][]int
}

// BuildIndex indexes records, which must all belong to platform.
func BuildIndex(ex *Extractor, platform string, records []domain.MarketRecord) *Index {
	ix := &Index{
		platform: platform,
		records:  records,
		postings: make(map[string][]int),
	}
	for pos, r := range records {
		for _, k := range ex.keys(r.Title) {
			ix.postings[k] = append(ix.postings[k], pos)
		}
	}
	return ix
}

// Platform returns the indexed platform.
func (ix *Index) Platform() string { return ix.platform }

// Len returns the number of indexed records.
func (ix *Index) Len() int { return len(ix.records) }

// Records returns the indexed records in their original order.
func (ix *Index) Records() []domain.MarketRecord { return ix.records }

// Keys returns the number of distinct keys.
func (ix *Index) Keys() int { return len(ix.postings) }

// Candidates returns, in index order, the records sharing at least floor
// entity tokens with title. Stem keys only widen the candidate set at floor 1,
// where a shared stem stands in for a shared entity. A record with the
// identical normalized title is always a candidate. floor below 1 is treated
// as 1.
func (ix *Index) Candidates(ex *Extractor, title string, floor int) []Candidate {
	if floor < 1 {
		floor = 1
	}
	keys := ex.keys(title)
	if len(keys) == 0 {
		return nil
	}

	shared := make(map[int]int)
	exact := make(map[int]bool)
	stem := make(map[int]bool)
	for _, k := range keys {
		for _, pos := range ix.postings[k] {
			switch k[0] {
			case titleKeyPrefix[0]:
				exact[pos] = true
			case stemKeyPrefix[0]:
				stem[pos] = true
			default:
				shared[pos]++
			}
		}
	}

	seen := make(map[int]struct{}, len(shared)+len(stem)+len(exact))
	for pos := range shared {
		seen[pos] = struct{}{}
	}
	for pos := range stem {
		seen[pos] = struct{}{}
	}
	for pos := range exact {
		seen[pos] = struct{}{}
	}

	out := make([]Candidate, 0, len(seen))
	for pos := range seen {
		n := shared[pos]
		if n >= floor || exact[pos] || (floor == 1 && stem[pos]) {
			out = append(out, Candidate{Pos: pos, Record: ix.records[pos], Shared: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos < out[j].Pos })
	return out
}

// keys returns the distinct index keys of a title.
func (e *Extractor) keys(title string) []string {
	n := e.Normalize(title)
	if n == "" {
		return nil
	}
	ents := e.Entities(title)
	seen := make(map[string]struct{}, 2*len(ents)+1)
	out := make([]string, 0, 2*len(ents)+1)
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, tok := range ents.Sorted() {
		add(tok)
		if len(tok) >= stemKeyLen {
			add(stemKeyPrefix + tok[:stemKeyLen])
		}
	}
	add(titleKeyPrefix + n)
	return out
}
