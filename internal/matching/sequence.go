package matching

// SequenceRatio returns the Ratcliff/Obershelp similarity of a and b:
// 2·M / (len(a)+len(b)), where M is the total size of the matching blocks
// found by recursively taking the longest common substring and repeating on
// the pieces to its left and right. Ties between equally long substrings go
// to the one that starts earliest in the lexically smaller string, then
// earliest in the other. No characters are treated as junk.
//
// The arguments are ordered before matching so the result is symmetric.
// Two empty strings score 1.
func SequenceRatio(a, b string) float64 {
	if a > b {
		a, b = b, a
	}
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	if a == b {
		return 1
	}
	m := newSeqMatcher(a, b)
	return 2 * float64(m.matchedChars()) / float64(total)
}

type seqMatcher struct {
	a, b string
	b2j  map[byte][]int

	// Scratch rows of the longest-suffix table, indexed by j+1. Both are
	// all-zero between calls to longest.
	prev, cur []int
}

func newSeqMatcher(a, b string) *seqMatcher {
	b2j := make(map[byte][]int)
	for j := 0; j < len(b); j++ {
		b2j[b[j]] = append(b2j[b[j]], j)
	}
	return &seqMatcher{
		a:    a,
		b:    b,
		b2j:  b2j,
		prev: make([]int, len(b)+1),
		cur:  make([]int, len(b)+1),
	}
}

// longest finds the longest common substring of a[alo:ahi] and b[blo:bhi].
func (m *seqMatcher) longest(alo, ahi, blo, bhi int) (besti, bestj, size int) {
	besti, bestj = alo, blo
	prev, cur := m.prev, m.cur
	var prevSet, curSet []int

	for i := alo; i < ahi; i++ {
		for _, j := range m.b2j[m.a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := prev[j] + 1
			cur[j+1] = k
			curSet = append(curSet, j+1)
			if k > size {
				besti, bestj, size = i-k+1, j-k+1, k
			}
		}
		for _, idx := range prevSet {
			prev[idx] = 0
		}
		prev, cur = cur, prev
		prevSet, curSet = curSet, prevSet[:0]
	}
	for _, idx := range prevSet {
		prev[idx] = 0
	}
	return besti, bestj, size
}

func (m *seqMatcher) matchedChars() int {
	type span struct{ alo, ahi, blo, bhi int }

	matched := 0
	queue := []span{{0, len(m.a), 0, len(m.b)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := m.longest(s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		matched += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return matched
}
