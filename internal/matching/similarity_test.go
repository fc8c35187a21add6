package matching

import (
	"math"
	"testing"
)

const eps = 1e-9

var sampleTitles = []string{
	"Will Trump buy Greenland?",
	"Trump to acquire Greenland?",
	"Will Doug Burgum leave the Trump Cabinet?",
	"Will Marco Rubio leave the Trump Cabinet?",
	"Will Chiefs win the Super Bowl?",
	"Will Eagles win the Super Bowl?",
	"Will Trump be convicted?",
	"Trump conviction odds",
	"Will BTC hit $100k in 2025?",
	"Bitcoin above $100,000 by December 31",
	"Dems win the House?",
	"Will Democrats win the House in 2026?",
	"Will it happen?",
	"",
	"?!",
}

func TestSequenceRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "", 0},
		{"abc", "abc", 1},
		{"abcd", "bcde", 0.75},
		{"abc", "xyz", 0},
		{"trump to acquire greenland", "will trump buy greenland", 0.68},
		{"chiefs", "eagles", 4.0 / 12.0},
	}
	for _, tt := range tests {
		if got := SequenceRatio(tt.a, tt.b); math.Abs(got-tt.want) > eps {
			t.Errorf("SequenceRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if got, rev := SequenceRatio(tt.a, tt.b), SequenceRatio(tt.b, tt.a); got != rev {
			t.Errorf("SequenceRatio not symmetric for %q, %q: %v vs %v", tt.a, tt.b, got, rev)
		}
	}
}

func TestSimilarityIdentity(t *testing.T) {
	for _, title := range sampleTitles {
		got := Similarity(title, title)
		want := 1.0
		if Normalize(title) == "" {
			want = 0
		}
		if got != want {
			t.Errorf("Similarity(%q, itself) = %v, want %v", title, got, want)
		}
	}
}

func TestSimilaritySymmetricAndBounded(t *testing.T) {
	ex := NewExtractor()
	for _, a := range sampleTitles {
		for _, b := range sampleTitles {
			ab, ba := ex.Similarity(a, b), ex.Similarity(b, a)
			if ab != ba {
				t.Errorf("Similarity(%q, %q) = %v but reversed = %v", a, b, ab, ba)
			}
			if ab < 0 || ab > 1 {
				t.Errorf("Similarity(%q, %q) = %v, outside [0,1]", a, b, ab)
			}
		}
	}
}

func TestSimilarityScenarios(t *testing.T) {
	t.Run("same template disjoint subjects", func(t *testing.T) {
		got := Similarity("Will Doug Burgum leave the Trump Cabinet?", "Will Marco Rubio leave the Trump Cabinet?")
		if got != 0 {
			t.Errorf("Similarity = %v, want 0", got)
		}
	})

	t.Run("alias folding", func(t *testing.T) {
		got := Similarity("Trump to acquire Greenland?", "Will Trump buy Greenland?")
		want := 0.40 + 0.20 + 0.25*0.68 + 0.15
		if math.Abs(got-want) > eps {
			t.Errorf("Similarity = %v, want %v", got, want)
		}
		if got < 0.40 {
			t.Errorf("Similarity = %v, want >= 0.40", got)
		}
	})

	t.Run("single disjoint subjects", func(t *testing.T) {
		got := Similarity("Will Chiefs win the Super Bowl?", "Will Eagles win the Super Bowl?")
		if got != 0 {
			t.Errorf("Similarity = %v, want 0", got)
		}
	})

	t.Run("prefix stemmed subjects", func(t *testing.T) {
		got := Similarity("Will Trump be convicted?", "Trump conviction odds")
		if got < 0.75 {
			t.Errorf("Similarity = %v, want >= 0.75", got)
		}
	})

	t.Run("template only titles", func(t *testing.T) {
		got := Similarity("Will Trump win the election?", "Trump election win")
		if got < 0.70 {
			t.Errorf("Similarity = %v, want >= 0.70", got)
		}
	})

	t.Run("no shared entities", func(t *testing.T) {
		got := Similarity("Will BTC hit $100k in 2025?", "Dems win the House?")
		if got != 0 {
			t.Errorf("Similarity = %v, want 0", got)
		}
	})
}

func TestDisjointFullySpecifiedSubjects(t *testing.T) {
	pairs := [][2]string{
		{"Will Doug Burgum leave the Trump Cabinet?", "Will Marco Rubio leave the Trump Cabinet?"},
		{"Will Gavin Newsom win the nomination?", "Will Josh Shapiro win the nomination?"},
		{"Lakers Celtics finals", "Knicks Nuggets finals"},
	}
	for _, p := range pairs {
		s1, s2 := ExtractSubjects(p[0]), ExtractSubjects(p[1])
		if len(s1) < 2 || len(s2) < 2 {
			t.Fatalf("test pair %q / %q needs two subjects each, got %v / %v", p[0], p[1], s1.Sorted(), s2.Sorted())
		}
		if got := Similarity(p[0], p[1]); got != 0 {
			t.Errorf("Similarity(%q, %q) = %v, want 0", p[0], p[1], got)
		}
	}
}

func TestRejectionGates(t *testing.T) {
	tests := []struct {
		name string
		o    overlap
		want gate
	}{
		{"full overlap scores",
			overlap{entities: [2]int{4, 4}, entityInter: 4, subjects: [2]int{2, 2}, subjectInter: 2}, gateNone},
		{"no shared entity",
			overlap{entities: [2]int{3, 3}, subjects: [2]int{1, 1}, subjectInter: 1}, gateNoEntities},
		{"empty entity side",
			overlap{entities: [2]int{0, 3}}, gateNoEntities},
		{"two disjoint subjects each",
			overlap{entities: [2]int{4, 4}, entityInter: 3, subjects: [2]int{2, 2}, subjectTokenRatio: 0.9}, gateDisjointSubjects},

		// Disjoint single subjects: the character ratio gate.
		{"subject ratio below 0.75",
			overlap{entities: [2]int{2, 2}, entityInter: 2, subjects: [2]int{1, 1}, subjectTokenRatio: 0.74}, gateSubjectRatio},
		{"subject ratio at 0.75 passes to the subject floor",
			overlap{entities: [2]int{2, 2}, entityInter: 2, subjects: [2]int{1, 1}, subjectTokenRatio: 0.75}, gateSubjectFloor},

		// Early exit: entity Jaccard below 0.25 without subject rescue.
		{"entity jaccard at 0.25",
			overlap{entities: [2]int{5, 5}, entityInter: 2}, gateNone},
		{"entity jaccard below 0.25",
			overlap{entities: [2]int{5, 6}, entityInter: 2}, gateEarlyExit},
		{"low entity jaccard rescued by subjects",
			overlap{entities: [2]int{5, 6}, entityInter: 2, subjects: [2]int{2, 2}, subjectInter: 2}, gateNone},
		{"low entity jaccard with subject jaccard below 0.35",
			overlap{entities: [2]int{5, 6}, entityInter: 2, subjects: [2]int{2, 3}, subjectInter: 1}, gateEarlyExit},

		// Hard entity floor at 0.15.
		{"entity jaccard just above 0.15",
			overlap{entities: [2]int{7, 8}, entityInter: 2, subjects: [2]int{1, 1}, subjectInter: 1}, gateNone},
		{"entity jaccard below 0.15",
			overlap{entities: [2]int{8, 8}, entityInter: 2, subjects: [2]int{1, 1}, subjectInter: 1}, gateEntityFloor},

		// Subject Jaccard floor at 0.25.
		{"subject jaccard at 0.25",
			overlap{entities: [2]int{3, 3}, entityInter: 3, subjects: [2]int{1, 4}, subjectInter: 1}, gateNone},
		{"subject jaccard below 0.25",
			overlap{entities: [2]int{3, 3}, entityInter: 3, subjects: [2]int{1, 5}, subjectInter: 1}, gateSubjectFloor},
		{"subjects on one side only",
			overlap{entities: [2]int{3, 3}, entityInter: 3, subjects: [2]int{0, 2}}, gateSubjectFloor},

		// Subject recall floor at 0.50.
		{"subject recall at 0.50",
			overlap{entities: [2]int{5, 5}, entityInter: 5, subjects: [2]int{4, 4}, subjectInter: 2}, gateNone},
		{"subject recall below 0.50",
			overlap{entities: [2]int{5, 5}, entityInter: 5, subjects: [2]int{5, 5}, subjectInter: 2}, gateSubjectRecall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.o.firstGate(); got != tt.want {
				t.Errorf("firstGate(%+v) = %d, want %d", tt.o, got, tt.want)
			}
		})
	}
}

func TestDisjointSingleSubjectsScoreZero(t *testing.T) {
	// "newsom" and "newsome" clear the character ratio gate, but with no
	// shared subject the subject floor still rejects the pair.
	a, b := NewTokenSet("newsom"), NewTokenSet("newsome")
	if r := bestTokenRatio(a, b); r < MinSubjectSeqRatio {
		t.Fatalf("bestTokenRatio = %v, want >= %v", r, MinSubjectSeqRatio)
	}
	o := overlap{entities: [2]int{2, 2}, entityInter: 2, subjects: [2]int{1, 1}, subjectTokenRatio: bestTokenRatio(a, b)}
	if got := o.firstGate(); got != gateSubjectFloor {
		t.Errorf("firstGate = %d, want subject floor", got)
	}
}

func TestPrefixMatch(t *testing.T) {
	tests := []struct {
		x, y string
		want bool
	}{
		{"convicted", "conviction", true},
		{"trump", "trumps", true},
		{"conv", "convo", true},
		{"abc", "abcd", false},
		{"greenland", "greece", false},
		{"abc", "abc", false},
	}
	for _, tt := range tests {
		if got := prefixMatch(tt.x, tt.y); got != tt.want {
			t.Errorf("prefixMatch(%q, %q) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestStemmedOverlapBounded(t *testing.T) {
	a := NewTokenSet("convicted", "convoy", "trump")
	b := NewTokenSet("conviction", "trump")
	got := stemmedOverlap(a, b, true)
	if got != 2 {
		t.Errorf("stemmedOverlap = %d, want 2", got)
	}
	if rev := stemmedOverlap(b, a, true); rev != got {
		t.Errorf("stemmedOverlap not symmetric: %d vs %d", got, rev)
	}
	if exact := stemmedOverlap(a, b, false); exact != 1 {
		t.Errorf("exact overlap = %d, want 1", exact)
	}
}
