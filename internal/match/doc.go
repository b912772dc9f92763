// Package match provides header-name normalization, Levenshtein similarity
// and candidate ranking used to map arbitrary spreadsheet headers onto
// canonical entity fields.
//
// Key functions:
//   - NormalizeHeader: folds case, separators and punctuation
//   - Levenshtein: computes edit distance between strings
//   - Rank: ranks canonical names against an input header
package match
