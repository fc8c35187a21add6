package matching

import (
	"strings"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// DefaultSlugOverlap is the slug-entity Jaccard two records need when both
// expose slug entities.
const DefaultSlugOverlap = 0.35

// minOpaqueHexLen is the length from which an all-hex identifier is treated
// as a hash or condition ID.
const minOpaqueHexLen = 16

// SlugEntities returns the entity tokens parsed from a record's slug. The ID
// is never consulted. A missing slug, or an opaque one (hex hash, 0x
// condition ID, numeric ID or upper-case exchange ticker), yields an empty
// set.
func (e *Extractor) SlugEntities(r domain.MarketRecord) TokenSet {
	src := r.Slug
	if s, ok := e.slugs[src]; ok {
		return s
	}
	var s TokenSet
	if isOpaqueIdentifier(src) {
		s = TokenSet{}
	} else {
		s = entitiesOf(Normalize(splitIdentifier(src)))
	}
	e.slugs[src] = s
	return s
}

// SlugCompatible reports whether two records pass the slug cross-check. The
// check only constrains pairs where both records have slug entities.
func (e *Extractor) SlugCompatible(a, b domain.MarketRecord, threshold float64) bool {
	sa, sb := e.SlugEntities(a), e.SlugEntities(b)
	if len(sa) == 0 || len(sb) == 0 {
		return true
	}
	return sa.Jaccard(sb) >= threshold
}

func isOpaqueIdentifier(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return true
	}
	lower := strings.ToLower(id)
	if strings.HasPrefix(lower, "0x") {
		return true
	}
	if isDigits(id) {
		return true
	}
	// Exchange tickers such as KXGREENLAND-25DEC carry no lowercase letters.
	if !strings.ContainsAny(id, "abcdefghijklmnopqrstuvwxyz") {
		return true
	}
	compact := strings.ReplaceAll(lower, "-", "")
	return len(compact) >= minOpaqueHexLen && isHex(compact)
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// splitIdentifier turns separators such as '-', '_', '/' and '.' into spaces.
func splitIdentifier(id string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return ' '
	}, id)
}
