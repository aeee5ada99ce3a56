package memory

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
)

// rankWeights tunes the relevance score. The weights are policy, not
// contract: the budget and pin-priority invariants hold for any values.
type rankWeights struct {
	overlap      float64 // query/content token overlap
	titleTag     float64 // query/title+tag token overlap
	recency      float64 // freshness of UpdatedAt
	pinned       float64 // fixed boost for pinned entries
	continuation float64 // boost for continuation entries on empty-like queries
}

var defaultWeights = rankWeights{
	overlap:      6.0,
	titleTag:     2.0,
	recency:      1.0,
	pinned:       0.75,
	continuation: 0.5,
}

// recencyHalfLife controls how fast the freshness term decays. Two weeks
// keeps recency a tiebreaker, never strong enough to override a real
// overlap match.
const recencyHalfLife = 14 * 24 * time.Hour

// normalizeText lowercases and collapses everything that is not a letter,
// digit, or path-ish character into single spaces.
func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '/' || r == '_' || r == '-' || r == '.' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// tokenSet splits normalized text into word tokens. Single-character
// tokens carry no signal and are dropped.
func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(normalizeText(s)) {
		if len(w) < 2 {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b| over token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

type scoredEntry struct {
	entry Entry
	score float64
}

// rankEntries scores candidates against the query and returns them in a
// deterministic total order: score descending, then UpdatedAt descending,
// then ID ascending. Entries with zero token overlap are excluded from
// candidacy unless they are pinned and includePinned is set — nothing is
// surfaced purely on recency.
func rankEntries(entries []Entry, query string, includePinned bool, now time.Time) []Entry {
	queryTokens := tokenSet(query)
	emptyLike := len(queryTokens) == 0
	w := defaultWeights

	scored := make([]scoredEntry, 0, len(entries))
	for _, e := range entries {
		contentOverlap := jaccard(queryTokens, tokenSet(e.Content))
		titleTagOverlap := jaccard(queryTokens, tokenSet(e.Title+" "+strings.Join(e.Tags, " ")))

		if contentOverlap == 0 && titleTagOverlap == 0 && !(includePinned && e.Pinned) {
			continue
		}

		ageHours := now.Sub(e.UpdatedAt).Hours()
		if ageHours < 0 {
			ageHours = 0
		}
		freshness := math.Exp(-ageHours / recencyHalfLife.Hours())

		score := w.overlap*contentOverlap + w.titleTag*titleTagOverlap + w.recency*freshness
		if e.Pinned {
			score += w.pinned
		}
		if emptyLike && e.Type == TypeContinuation {
			score += w.continuation
		}
		scored = append(scored, scoredEntry{entry: e, score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if !scored[i].entry.UpdatedAt.Equal(scored[j].entry.UpdatedAt) {
			return scored[i].entry.UpdatedAt.After(scored[j].entry.UpdatedAt)
		}
		return scored[i].entry.ID < scored[j].entry.ID
	})

	ranked := make([]Entry, len(scored))
	for i, se := range scored {
		ranked[i] = se.entry
	}
	return ranked
}
