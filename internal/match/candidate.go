package match

import "sort"

// Candidate is a canonical name scored against an input header.
type Candidate struct {
	// Name is the canonical name being proposed.
	Name string
	// Score is the header similarity in [0, 1].
	Score float64
}

// CandidateList is a list of candidates with ranking functionality.
type CandidateList []Candidate

// Rank scores every name against header and returns them sorted by score
// descending, ties broken by name for determinism.
func Rank(header string, names []string) CandidateList {
	candidates := make(CandidateList, 0, len(names))
	for _, name := range names {
		candidates = append(candidates, Candidate{
			Name:  name,
			Score: HeaderSimilarity(header, name),
		})
	}

	sort.Sort(candidates)

	return candidates
}

// Len implements sort.Interface.
func (c CandidateList) Len() int { return len(c) }

// Swap implements sort.Interface.
func (c CandidateList) Swap(i, j int) { c[i], c[j] = c[j], c[i] }

// Less implements sort.Interface.
func (c CandidateList) Less(i, j int) bool {
	if c[i].Score != c[j].Score {
		return c[i].Score > c[j].Score
	}

	return c[i].Name < c[j].Name
}

// Top returns the top n candidates.
func (c CandidateList) Top(n int) CandidateList {
	if n >= len(c) {
		return c
	}

	return c[:n]
}

// Best returns the best candidate, or nil if no candidates.
func (c CandidateList) Best() *Candidate {
	if len(c) == 0 {
		return nil
	}

	return &c[0]
}

// IsAmbiguous returns true if the top two candidates are within the threshold.
func (c CandidateList) IsAmbiguous(threshold float64) bool {
	if len(c) < 2 {
		return false
	}

	return c[0].Score-c[1].Score < threshold
}

// HighConfidence returns the best candidate if it meets minScore and leads
// the runner-up by at least minGap. Returns nil if no clear winner exists.
func (c CandidateList) HighConfidence(minScore, minGap float64) *Candidate {
	best := c.Best()
	if best == nil || best.Score < minScore {
		return nil
	}

	if len(c) > 1 && c[0].Score-c[1].Score < minGap {
		return nil
	}

	return best
}

// Confidence thresholds for auto-accepting header matches.
const (
	// DefaultMinScore is the minimum similarity for auto-acceptance.
	DefaultMinScore = 0.75
	// DefaultMinGap is the minimum score gap between top candidates.
	DefaultMinGap = 0.1
	// DefaultAmbiguityThreshold is the score difference that marks ambiguity.
	DefaultAmbiguityThreshold = 0.05
)
