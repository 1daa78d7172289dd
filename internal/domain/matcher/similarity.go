package matcher

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// VendorSimilarity scores how well a vendor name matches a bank-statement
// description on a 0–1 scale. Comparison is case-insensitive.
//
// Scoring is the best of three signals: whole-string containment, token
// overlap (what fraction of vendor tokens appear in the description),
// and normalized Levenshtein similarity. Statement text is noisy
// ("FAS GAS #42 LACOMBE AB" vs "Fas Gas"), so containment short-circuits
// before any edit-distance work.
func VendorSimilarity(vendor, description string) float64 {
	v := normalize(vendor)
	d := normalize(description)
	if v == "" || d == "" {
		return 0
	}

	if strings.Contains(d, v) || strings.Contains(v, d) {
		return 1.0
	}

	score := tokenOverlap(v, d)
	if lev := levenshteinRatio(v, d); lev > score {
		score = lev
	}
	return score
}

// normalize lowercases and collapses punctuation to spaces.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// tokenOverlap returns the fraction of vendor tokens present in the
// description. A token counts as present on exact equality or a close
// edit distance (statement abbreviations).
func tokenOverlap(vendor, description string) float64 {
	vendorTokens := strings.Fields(vendor)
	if len(vendorTokens) == 0 {
		return 0
	}
	descTokens := strings.Fields(description)

	matched := 0
	for _, vt := range vendorTokens {
		for _, dt := range descTokens {
			if vt == dt || (len(vt) > 3 && levenshteinRatio(vt, dt) >= 0.8) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(vendorTokens))
}

// levenshteinRatio converts edit distance to a 0–1 similarity.
func levenshteinRatio(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
	return 1.0 - float64(dist)/float64(maxLen)
}
