// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package rank_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curio-dev/curio/internal/corpus"
	"github.com/curio-dev/curio/internal/rank"
	"github.com/curio-dev/curio/internal/retrieval"
)

func embeddedCand(id string, score float64, embedding []float32) retrieval.Candidate {
	return retrieval.Candidate{
		Item:  &corpus.Item{ID: id, Category: "footwear", Embedding: embedding},
		Score: score,
	}
}

// Two near-duplicate items lead on score; a third points in an orthogonal
// embedding direction.
func diverseCandidates() []retrieval.Candidate {
	return []retrieval.Candidate{
		embeddedCand("item-a", 0.99, []float32{1, 0}),
		embeddedCand("item-b", 0.98, []float32{1, 0}),
		embeddedCand("item-c", 0.90, []float32{0, 1}),
	}
}

func TestMMRRerank(t *testing.T) {
	t.Run("lambda one keeps relevance order", func(t *testing.T) {
		reranked := rank.NewMMR(1.0).Rerank(diverseCandidates(), 3)
		assert.Equal(t, []string{"item-a", "item-b", "item-c"}, candidateIDs(reranked))
	})

	t.Run("lambda below one promotes the diverse item", func(t *testing.T) {
		// item-b's 0.98 score cannot beat its cosine similarity of 1.0
		// to the already-selected item-a at lambda 0.5.
		reranked := rank.NewMMR(0.5).Rerank(diverseCandidates(), 3)
		assert.Equal(t, []string{"item-a", "item-c", "item-b"}, candidateIDs(reranked))
	})

	t.Run("truncates to k", func(t *testing.T) {
		reranked := rank.NewMMR(0.5).Rerank(diverseCandidates(), 2)
		assert.Equal(t, []string{"item-a", "item-c"}, candidateIDs(reranked))
	})

	t.Run("k beyond length returns everything", func(t *testing.T) {
		reranked := rank.NewMMR(0.5).Rerank(diverseCandidates(), 10)
		assert.Len(t, reranked, 3)
	})

	t.Run("scores are not rewritten", func(t *testing.T) {
		reranked := rank.NewMMR(0.5).Rerank(diverseCandidates(), 3)
		require.Len(t, reranked, 3)
		assert.Equal(t, 0.90, reranked[1].Score, "item-c keeps its rank score")
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, rank.NewMMR(0.5).Rerank(nil, 5))
	})

	t.Run("zero k", func(t *testing.T) {
		assert.Empty(t, rank.NewMMR(0.5).Rerank(diverseCandidates(), 0))
	})

	t.Run("lambda is clamped", func(t *testing.T) {
		high := rank.NewMMR(1.5).Rerank(diverseCandidates(), 3)
		assert.Equal(t, []string{"item-a", "item-b", "item-c"}, candidateIDs(high))

		low := rank.NewMMR(-0.5).Rerank(diverseCandidates(), 3)
		assert.Equal(t, []string{"item-a", "item-c", "item-b"}, candidateIDs(low))
	})

	t.Run("missing embeddings count as fully diverse", func(t *testing.T) {
		candidates := []retrieval.Candidate{
			embeddedCand("item-a", 0.9, nil),
			embeddedCand("item-b", 0.8, nil),
		}
		reranked := rank.NewMMR(0.5).Rerank(candidates, 2)
		assert.Equal(t, []string{"item-a", "item-b"}, candidateIDs(reranked))
	})
}

// The engine wires MMR in after scoring, so a configured lambda changes the
// final order while preserving scores.
func TestEngineApplyWithDiversity(t *testing.T) {
	cfg := rank.DefaultConfig()
	cfg.MMRLambda = 0.5
	engine := mustEngine(t, cfg)

	candidates := []retrieval.Candidate{
		{Item: &corpus.Item{ID: "item-a", Category: "footwear", Embedding: []float32{1, 0}}, Similarity: 0.99},
		{Item: &corpus.Item{ID: "item-b", Category: "footwear", Embedding: []float32{1, 0}}, Similarity: 0.98},
		{Item: &corpus.Item{ID: "item-c", Category: "footwear", Embedding: []float32{0, 1}}, Similarity: 0.90},
	}

	result, err := engine.Apply(context.Background(), candidates, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"item-a", "item-c"}, candidateIDs(result))
	for i, c := range result {
		assert.Equal(t, i+1, c.Position)
	}
}
