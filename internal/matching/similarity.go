package matching

// Prefix stemming: two unmatched tokens whose shorter length is at least
// PrefixMinLen match when they share their first min(PrefixCap, shorter)
// characters ("convicted" / "conviction").
const (
	PrefixMinLen = 4
	PrefixCap    = 5
)

// Rejection thresholds.
const (
	// MinSubjectSeqRatio is the best character ratio two disjoint subject
	// sets need to survive.
	MinSubjectSeqRatio = 0.75
	// EarlyEntityJaccard and EarlySubjectJaccard gate the early exit taken
	// before the full-title sequence comparison.
	EarlyEntityJaccard  = 0.25
	EarlySubjectJaccard = 0.35
	// MinEntityJaccard is the hard entity floor.
	MinEntityJaccard = 0.15
	// MinSubjectJaccard applies whenever either side has subjects.
	MinSubjectJaccard = 0.25
	// MinSubjectRecall applies when both sides have subjects.
	MinSubjectRecall = 0.50
)

// Score weights when at least one side has subjects.
const (
	WeightSubjectJaccard = 0.40
	WeightEntityJaccard  = 0.20
	WeightSeqRatio       = 0.25
	WeightEntityRecall   = 0.15
)

// Score weights when neither side has subjects.
const (
	WeightPlainEntityJaccard = 0.55
	WeightPlainSeqRatio      = 0.30
	WeightPlainEntityRecall  = 0.15
)

// Similarity scores two titles in [0, 1] using a fresh Extractor.
func Similarity(a, b string) float64 {
	return NewExtractor().Similarity(a, b)
}

// Similarity scores two raw titles in [0, 1]. It is symmetric and returns 1
// for titles that normalize to the same nonempty string. Titles sharing a
// template but naming different subjects ("Will X leave the Trump Cabinet?"
// for different X) score 0.
func (e *Extractor) Similarity(a, b string) float64 {
	na, nb := e.Normalize(a), e.Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	e1, e2 := e.Entities(a), e.Entities(b)
	if len(e1) == 0 || len(e2) == 0 {
		return 0
	}
	s1, s2 := e.Subjects(a), e.Subjects(b)
	// Stemming is a fallback for subjects: only consulted when no subject
	// matches exactly.
	sInter := stemmedOverlap(s1, s2, false)
	if sInter == 0 {
		sInter = stemmedOverlap(s1, s2, true)
	}
	o := overlap{
		entities:     [2]int{len(e1), len(e2)},
		entityInter:  stemmedOverlap(e1, e2, true),
		subjects:     [2]int{len(s1), len(s2)},
		subjectInter: sInter,
	}
	if o.bothSubjects() && sInter == 0 {
		o.subjectTokenRatio = bestTokenRatio(s1, s2)
	}
	if o.firstGate() != gateNone {
		return 0
	}
	entityJaccard, entityRecall := o.entityJaccard(), o.entityRecall()
	subjectJaccard, anySubjects := o.subjectJaccard(), o.anySubjects()

	seq := SequenceRatio(na, nb)
	var score float64
	if anySubjects {
		score = WeightSubjectJaccard*subjectJaccard +
			WeightEntityJaccard*entityJaccard +
			WeightSeqRatio*seq +
			WeightEntityRecall*entityRecall
	} else {
		score = WeightPlainEntityJaccard*entityJaccard +
			WeightPlainSeqRatio*seq +
			WeightPlainEntityRecall*entityRecall
	}
	return clamp01(score)
}

// overlap holds the set sizes the rejection gates read. Index 0 and 1 are
// the two titles.
type overlap struct {
	entities     [2]int
	entityInter  int
	subjects     [2]int
	subjectInter int
	// subjectTokenRatio is bestTokenRatio of the subject sets. It is only
	// read when both sides have subjects and none overlap.
	subjectTokenRatio float64
}

func (o overlap) anySubjects() bool  { return o.subjects[0] > 0 || o.subjects[1] > 0 }
func (o overlap) bothSubjects() bool { return o.subjects[0] > 0 && o.subjects[1] > 0 }

func (o overlap) entityJaccard() float64 {
	return ratio(o.entityInter, o.entities[0]+o.entities[1]-o.entityInter)
}

func (o overlap) entityRecall() float64 {
	return ratio(o.entityInter, min(o.entities[0], o.entities[1]))
}

func (o overlap) subjectJaccard() float64 {
	if !o.anySubjects() {
		return 0
	}
	return ratio(o.subjectInter, o.subjects[0]+o.subjects[1]-o.subjectInter)
}

func (o overlap) subjectRecall() float64 {
	return ratio(o.subjectInter, min(o.subjects[0], o.subjects[1]))
}

// gate names the rejection rule that zeroed a pair.
type gate int

const (
	gateNone gate = iota
	gateNoEntities
	gateDisjointSubjects
	gateSubjectRatio
	gateEarlyExit
	gateEntityFloor
	gateSubjectFloor
	gateSubjectRecall
)

// firstGate applies the rejection gates in order and returns the first one
// hit, or gateNone when the pair goes on to be scored.
func (o overlap) firstGate() gate {
	switch {
	case o.entities[0] == 0 || o.entities[1] == 0 || o.entityInter == 0:
		return gateNoEntities
	case o.subjects[0] >= 2 && o.subjects[1] >= 2 && o.subjectInter == 0:
		return gateDisjointSubjects
	case o.bothSubjects() && o.subjectInter == 0 && o.subjectTokenRatio < MinSubjectSeqRatio:
		return gateSubjectRatio
	case o.entityJaccard() < EarlyEntityJaccard && (!o.anySubjects() || o.subjectJaccard() < EarlySubjectJaccard):
		return gateEarlyExit
	case o.entityJaccard() < MinEntityJaccard:
		return gateEntityFloor
	case o.anySubjects() && o.subjectJaccard() < MinSubjectJaccard:
		return gateSubjectFloor
	case o.bothSubjects() && o.subjectRecall() < MinSubjectRecall:
		return gateSubjectRecall
	}
	return gateNone
}

// stemmedOverlap counts exact matches between a and b. With stem set it adds
// min(|A'|, |B'|), where A' are the unmatched tokens of a with a prefix
// partner among the unmatched tokens of b and B' the converse. The count
// never exceeds min(|a|, |b|) and is symmetric in its arguments.
func stemmedOverlap(a, b TokenSet, stem bool) int {
	exact := 0
	for t := range a {
		if b.Has(t) {
			exact++
		}
	}
	if !stem {
		return exact
	}

	var restA, restB []string
	for t := range a {
		if !b.Has(t) {
			restA = append(restA, t)
		}
	}
	for t := range b {
		if !a.Has(t) {
			restB = append(restB, t)
		}
	}
	if len(restA) == 0 || len(restB) == 0 {
		return exact
	}
	return exact + min(countWithPartner(restA, restB), countWithPartner(restB, restA))
}

func countWithPartner(from, to []string) int {
	n := 0
	for _, x := range from {
		for _, y := range to {
			if prefixMatch(x, y) {
				n++
				break
			}
		}
	}
	return n
}

// prefixMatch reports whether x and y share a stem. Tokens shorter than
// PrefixMinLen never do.
func prefixMatch(x, y string) bool {
	shorter := min(len(x), len(y))
	if shorter < PrefixMinLen {
		return false
	}
	k := min(PrefixCap, shorter)
	return x[:k] == y[:k]
}

// bestTokenRatio is the highest SequenceRatio between any pair of tokens of
// length >= PrefixMinLen drawn from a and b, or 0 when no such pair exists.
func bestTokenRatio(a, b TokenSet) float64 {
	best := 0.0
	for x := range a {
		if len(x) < PrefixMinLen {
			continue
		}
		for y := range b {
			if len(y) < PrefixMinLen {
				continue
			}
			if r := SequenceRatio(x, y); r > best {
				best = r
			}
		}
	}
	return best
}

func ratio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
