package match

// Levenshtein computes the edit distance between two strings, counted in runes:
// the minimum number of single-rune insertions, deletions or substitutions
// that turn a into b.
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}

	ra, rb := []rune(a), []rune(b)

	// Keep ra as the shorter one so the rows stay small.
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}

	if len(ra) == 0 {
		return len(rb)
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)

	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(rb); j++ {
		curr[0] = j

		for i := 1; i <= len(ra); i++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			curr[i] = min(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(ra)]
}

// Similarity returns 1 - distance/maxLen, so 1.0 means identical and 0.0
// means nothing in common. Two empty strings are identical.
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 1.0
	}

	return 1.0 - float64(Levenshtein(a, b))/float64(max(la, lb))
}

// HeaderSimilarity compares two headers after normalization, taking the
// better of the plain and suffix-stripped comparisons.
func HeaderSimilarity(a, b string) float64 {
	plain := Similarity(NormalizeHeader(a), NormalizeHeader(b))
	stripped := Similarity(NormalizeHeaderWithSuffixStrip(a), NormalizeHeaderWithSuffixStrip(b))

	return max(plain, stripped)
}
