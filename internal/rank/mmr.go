// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package rank

import (
	"math"

	"github.com/curio-dev/curio/internal/retrieval"
)

// MMR implements maximal marginal relevance reranking over item embeddings.
// It greedily selects candidates maximizing
//
//	lambda * score(i) - (1 - lambda) * max(sim(i, s)) for s in selected
//
// where sim is cosine similarity between item embeddings, so near-duplicate
// items are pushed down the list in favor of diverse ones.
//
// Carbonell, J., & Goldstein, J. (1998). "The Use of MMR, Diversity-Based
// Reranking for Reordering Documents and Producing Summaries." SIGIR 1998.
type MMR struct {
	lambda float64
}

// NewMMR creates a reranker. lambda is clamped into [0, 1]: 1 is pure
// relevance, 0 is pure diversity.
func NewMMR(lambda float64) *MMR {
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	return &MMR{lambda: lambda}
}

// Rerank returns up to k candidates selected greedily by MMR score.
// Candidates must arrive sorted by score descending so ties resolve toward
// the higher-ranked candidate. Scores are left unchanged; only the order
// differs from the input.
func (m *MMR) Rerank(candidates []retrieval.Candidate, k int) []retrieval.Candidate {
	if len(candidates) == 0 || k <= 0 {
		return candidates[:0]
	}
	if k > len(candidates) {
		k = len(candidates)
	}
	if m.lambda >= 1 {
		return candidates[:k]
	}

	similarities := itemSimilarityMatrix(candidates)

	selected := make([]retrieval.Candidate, 0, k)
	chosen := make([]bool, len(candidates))

	for len(selected) < k {
		bestIdx := -1
		bestScore := math.Inf(-1)

		for i, cand := range candidates {
			if chosen[i] {
				continue
			}

			maxSim := 0.0
			for j := range candidates {
				if chosen[j] && similarities[i][j] > maxSim {
					maxSim = similarities[i][j]
				}
			}

			mmrScore := m.lambda*cand.Score - (1-m.lambda)*maxSim
			if mmrScore > bestScore {
				bestScore = mmrScore
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break
		}
		selected = append(selected, candidates[bestIdx])
		chosen[bestIdx] = true
	}
	return selected
}

// itemSimilarityMatrix computes pairwise cosine similarity between candidate
// item embeddings. Pairs with a missing or zero embedding score 0 and are
// treated as fully diverse.
func itemSimilarityMatrix(candidates []retrieval.Candidate) [][]float64 {
	n := len(candidates)
	similarities := make([][]float64, n)
	for i := range similarities {
		similarities[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := cosineSimilarity(candidates[i].Item.Embedding, candidates[j].Item.Embedding)
			similarities[i][j] = sim
			similarities[j][i] = sim
		}
	}
	return similarities
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
