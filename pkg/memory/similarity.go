package memory

import (
	"strings"
	"unicode/utf8"
)

const (
	semanticWeight = 0.6
	exactWeight    = 0.4
	minTokenLen    = 4
)

// Similarity scores two observations in [0,1]. Observations of different
// kinds never match. When both carry a message the score blends token
// overlap of the messages with exact field equality; otherwise it is the
// exact-field score alone.
func Similarity(a, b Observation) float64 {
	if a.Kind() == "" || a.Kind() != b.Kind() {
		return 0
	}

	exact := exactFieldScore(a.fields(), b.fields())
	if a.Message == "" || b.Message == "" {
		return exact
	}
	semantic := SemanticSimilarity(a.Message, b.Message)
	return semanticWeight*semantic + exactWeight*exact
}

func exactFieldScore(a, b map[string]any) float64 {
	if len(a) == 0 {
		return 0
	}
	matches := 0
	for key, av := range a {
		bv, ok := b[key]
		if ok && av == bv {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}

// SemanticSimilarity is the Jaccard index of the word sets of two texts,
// ignoring words of three characters or fewer.
func SemanticSimilarity(a, b string) float64 {
	left := tokenSet(a)
	right := tokenSet(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}
	inter := 0
	for tok := range left {
		if _, ok := right[tok]; ok {
			inter++
		}
	}
	union := len(left) + len(right) - inter
	return float64(inter) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		if utf8.RuneCountInString(tok) < minTokenLen {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}
