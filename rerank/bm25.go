// Package rerank re-orders vector search candidates by lexical relevance.
package rerank

import (
	"math"
	"slices"

	"github.com/poiesic/ragline/core"
)

// Okapi BM25 defaults.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// BM25 scores documents against a query. Document frequencies and the
// average length are computed over the documents passed to Score, so the
// candidate set is the corpus.
type BM25 struct {
	K1 float64
	B  float64
}

// NewBM25 returns a scorer with the default parameters.
func NewBM25() BM25 {
	return BM25{K1: DefaultK1, B: DefaultB}
}

// Score returns one score per document. Each distinct query term counts once.
func (s BM25) Score(query string, docs []string) []float64 {
	scores := make([]float64, len(docs))
	terms := uniqueTerms(Tokenize(query))
	if len(terms) == 0 || len(docs) == 0 {
		return scores
	}

	freqs := make([]map[string]int, len(docs))
	lengths := make([]int, len(docs))
	docFreq := make(map[string]int, len(terms))
	total := 0
	for i, doc := range docs {
		tokens := Tokenize(doc)
		lengths[i] = len(tokens)
		total += len(tokens)
		freqs[i] = make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freqs[i][tok]++
		}
		for _, term := range terms {
			if freqs[i][term] > 0 {
				docFreq[term]++
			}
		}
	}
	if total == 0 {
		return scores
	}

	n := float64(len(docs))
	avgLen := float64(total) / n
	for i := range docs {
		norm := s.K1 * (1 - s.B + s.B*float64(lengths[i])/avgLen)
		for _, term := range terms {
			tf := float64(freqs[i][term])
			if tf == 0 {
				continue
			}
			df := float64(docFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			scores[i] += idf * tf * (s.K1 + 1) / (tf + norm)
		}
	}
	return scores
}

// Rerank keeps the keep best candidates by BM25 score against query.
// Ties keep the higher vector rank. The survivors are returned in their
// original order.
func (s BM25) Rerank(query string, candidates []core.ScoredFragment, keep int) []core.ScoredFragment {
	if keep <= 0 || len(candidates) == 0 {
		return nil
	}
	if len(candidates) <= keep {
		return slices.Clone(candidates)
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Fragment.Text
	}
	scores := s.Score(query, texts)

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		}
		return 0
	})

	kept := order[:keep]
	slices.Sort(kept)
	out := make([]core.ScoredFragment, len(kept))
	for i, idx := range kept {
		out[i] = candidates[idx]
	}
	return out
}

func uniqueTerms(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	terms := tokens[:0]
	for _, tok := range tokens {
		if !seen[tok] {
			seen[tok] = true
			terms = append(terms, tok)
		}
	}
	return terms
}
