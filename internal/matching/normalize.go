// Package matching resolves the same real-world event across venues from
// market titles alone: normalization, entity extraction, pairwise similarity
// and an inverted index for candidate generation.
package matching

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// minEntityLen is the shortest token kept as an entity.
const minEntityLen = 3

// TokenSet is a set of canonical tokens.
type TokenSet map[string]struct{}

// NewTokenSet builds a set from the given tokens.
func NewTokenSet(tokens ...string) TokenSet {
	s := make(TokenSet, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether tok is in the set.
func (s TokenSet) Has(tok string) bool {
	_, ok := s[tok]
	return ok
}

// Sorted returns the tokens in lexical order.
func (s TokenSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Jaccard returns |s∩o| / |s∪o| without prefix stemming. Two empty sets
// score 0.
func (s TokenSet) Jaccard(o TokenSet) float64 {
	inter := 0
	for t := range s {
		if o.Has(t) {
			inter++
		}
	}
	union := len(s) + len(o) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Normalize folds a title to lowercase ASCII letters, digits and single
// spaces. Accented letters are decomposed first so "é" becomes "e"; every
// other character is removed without leaving a gap.
func Normalize(title string) string {
	decomposed := strings.ToLower(norm.NFKD.String(title))

	var b strings.Builder
	b.Grow(len(decomposed))
	pendingSpace := false
	for _, r := range decomposed {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return b.String()
}

// ExtractEntities returns the canonical entity tokens of a title.
func ExtractEntities(title string) TokenSet {
	return entitiesOf(Normalize(title))
}

// ExtractSubjects returns the entities of a title that are not template
// words.
func ExtractSubjects(title string) TokenSet {
	return subjectsOf(ExtractEntities(title))
}

func entitiesOf(normalized string) TokenSet {
	out := make(TokenSet)
	for _, tok := range strings.Fields(normalized) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if isDigits(tok) {
			continue
		}
		if canon, ok := aliases[tok]; ok {
			tok = canon
		}
		if len(tok) < minEntityLen {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

func subjectsOf(entities TokenSet) TokenSet {
	out := make(TokenSet, len(entities))
	for tok := range entities {
		if _, tmpl := templateWords[tok]; tmpl {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Extractor memoizes normalization and entity extraction per title. It is
// meant to live for one scan and is not safe for concurrent use.
type Extractor struct {
	normalized map[string]string
	entities   map[string]TokenSet
	subjects   map[string]TokenSet
	slugs      map[string]TokenSet
}

// NewExtractor returns an empty Extractor.
func NewExtractor() *Extractor {
	return &Extractor{
		normalized: make(map[string]string),
		entities:   make(map[string]TokenSet),
		subjects:   make(map[string]TokenSet),
		slugs:      make(map[string]TokenSet),
	}
}

// Normalize is the memoized form of the package-level Normalize.
func (e *Extractor) Normalize(title string) string {
	if n, ok := e.normalized[title]; ok {
		return n
	}
	n := Normalize(title)
	e.normalized[title] = n
	return n
}

// Entities is the memoized form of ExtractEntities. Callers must not modify
// the returned set.
func (e *Extractor) Entities(title string) TokenSet {
	if s, ok := e.entities[title]; ok {
		return s
	}
	s := entitiesOf(e.Normalize(title))
	e.entities[title] = s
	return s
}

// Subjects is the memoized form of ExtractSubjects. Callers must not modify
// the returned set.
func (e *Extractor) Subjects(title string) TokenSet {
	if s, ok := e.subjects[title]; ok {
		return s
	}
	s := subjectsOf(e.Entities(title))
	e.subjects[title] = s
	return s
}
