package loader

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"auction-advisor/internal/catalog"
)

// DefaultSimilarity is the minimum fuzzy name similarity for a match.
const DefaultSimilarity = 0.85

// Reconcile merges candidate lists by name. A record is only matched against
// records of earlier sources, never against its own source: names match
// exactly after normalisation, or fuzzily within the same position when
// their Levenshtein similarity reaches threshold. Later non-empty fields
// override earlier ones; unmatched records from every source are kept. A
// threshold <= 0 uses DefaultSimilarity.
func Reconcile(threshold float64, sources ...[]catalog.Candidate) []catalog.Candidate {
	if threshold <= 0 {
		threshold = DefaultSimilarity
	}

	var merged []catalog.Candidate
	var keys []string
	maxID := 0
	ids := make(map[int]bool)

	for _, src := range sources {
		earlier := len(merged)
		for _, c := range src {
			key := normalizeName(c.Name)
			if i := findMatch(merged[:earlier], keys[:earlier], c, key, threshold); i >= 0 {
				merged[i] = overlay(merged[i], c)
				continue
			}
			if ids[c.ID] || c.ID <= 0 {
				c.ID = maxID + 1
			}
			ids[c.ID] = true
			if c.ID > maxID {
				maxID = c.ID
			}
			merged = append(merged, c)
			keys = append(keys, key)
		}
	}
	return merged
}

func findMatch(merged []catalog.Candidate, keys []string, c catalog.Candidate, key string, threshold float64) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	best, bestScore := -1, 0.0
	for i, k := range keys {
		if merged[i].Position != c.Position {
			continue
		}
		if s := similarity(k, key); s >= threshold && s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

func similarity(a, b string) float64 {
	maxLen := len([]rune(a))
	if n := len([]rune(b)); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

// normalizeName lowercases, drops punctuation and collapses whitespace.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '.' || r == '\'':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// overlay copies every non-empty field of next onto base. Identity and
// auction state stay with base.
func overlay(base, next catalog.Candidate) catalog.Candidate {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	num := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	count := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}

	str(&base.Team, next.Team)
	num(&base.ConvenienceScore, next.ConvenienceScore)
	num(&base.Convenience, next.Convenience)
	num(&base.Score, next.Score)
	num(&base.Quotation, next.Quotation)
	num(&base.SeasonAverage, next.SeasonAverage)
	num(&base.PreviousAverage, next.PreviousAverage)
	count(&base.Appearances, next.Appearances)
	count(&base.Goals, next.Goals)
	count(&base.Assists, next.Assists)
	num(&base.XG, next.XG)
	num(&base.XA, next.XA)
	num(&base.CompositeIndex, next.CompositeIndex)
	num(&base.DealScore, next.DealScore)
	num(&base.Reliability, next.Reliability)
	count(&base.YellowCards, next.YellowCards)
	count(&base.RedCards, next.RedCards)
	if next.Trend != "" && next.Trend != catalog.TrendStable {
		base.Trend = next.Trend
	}
	base.Injured = base.Injured || next.Injured
	base.NewSigning = base.NewSigning || next.NewSigning
	return base
}
