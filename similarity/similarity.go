// Package similarity provides the text and vector similarity primitives used
// by retrieval deduplication and the repetition quality gate.
package similarity

import (
	"math"
	"strings"
)

// Jaccard computes token-set overlap between two strings.
// Tokens are lower-cased whitespace-separated words; the score is
// |A∩B| / |A∪B|. Returns 0.0 when either input has no tokens.
func Jaccard(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Cosine computes cosine similarity between two embedding vectors.
// Returns 0.0 for zero-magnitude or mismatched-length inputs.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
