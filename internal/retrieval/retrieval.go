// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

// Package retrieval turns a free-text query into scored candidates: it embeds
// the query, runs a nearest-neighbor search against the vector index, and
// joins the hits with corpus metadata for the ranking stage.
package retrieval

import (
	"context"
	"log/slog"

	"github.com/curio-dev/curio/internal/corpus"
	"github.com/curio-dev/curio/internal/index"
	"github.com/curio-dev/curio/internal/provider"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// Candidate is one retrieved item together with its similarity to the query.
// Similarity follows the index convention: higher is more similar (cosine
// similarity for cosine indexes, negated distance for L2). Score is the final
// rank score and is zero until the ranking engine assigns it. Position is the
// 1-based rank in the current ordering: retrieval order here, final order
// after ranking. Candidates live for one request and are never persisted.
type Candidate struct {
	Item       *corpus.Item `json:"item"`
	Similarity float64      `json:"similarity"`
	Score      float64      `json:"score"`
	Position   int          `json:"position"`
}

// Retriever resolves the configured embedding model through the provider
// router and searches the vector index, attaching corpus metadata to every
// hit. It holds no per-request state and is safe for concurrent use.
type Retriever struct {
	router      provider.Router
	embedderRef string
	index       index.Index
	store       corpus.Store
	logger      *slog.Logger
}

// New creates a Retriever. embedderRef is a "provider/model" reference or
// empty to use the router's default embedder. A nil logger falls back to
// slog.Default().
func New(router provider.Router, embedderRef string, idx index.Index, store corpus.Store, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		router:      router,
		embedderRef: embedderRef,
		index:       idx,
		store:       store,
		logger:      logger.With("component", "retrieval"),
	}
}

// EmbedQuery resolves the configured embedder and embeds query. Errors keep
// their provider-layer codes so callers can tell invalid input apart from
// upstream failure or timeout.
func (r *Retriever) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embedder, err := r.router.RouteEmbedder(ctx, r.embedderRef)
	if err != nil {
		return nil, err
	}
	return embedder.Embed(ctx, query)
}

// Search returns up to k candidates nearest to vector, in index order
// (score descending, ties by id ascending). Ids present in the index but
// no longer in the corpus are dropped and logged: the index may briefly
// trail the corpus during deletes, and a stale entry must not fail the
// request. Fewer than k candidates is not an error.
func (r *Retriever) Search(ctx context.Context, vector []float32, k int) ([]Candidate, error) {
	hits, err := r.index.Query(ctx, vector, k)
	if err != nil {
		return nil, curioerr.Wrapf(err, curioerr.CodeRetrieveIndexFailure, "querying index for %d neighbors", k)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ID
	}
	items, err := r.store.GetBatch(ctx, ids)
	if err != nil {
		return nil, curioerr.Wrapf(err, curioerr.CodeRetrieveCorpusFailure, "loading %d candidate items", len(ids))
	}

	candidates := make([]Candidate, 0, len(hits))
	for _, hit := range hits {
		item, ok := items[hit.ID]
		if !ok {
			r.logger.Warn("dropping stale index entry", "item_id", hit.ID)
			continue
		}
		candidates = append(candidates, Candidate{
			Item:       item,
			Similarity: hit.Score,
			Position:   len(candidates) + 1,
		})
	}
	return candidates, nil
}

// Retrieve embeds query and searches for its k nearest candidates. Embedding
// failures are folded into the retrieval taxonomy; callers that need the
// provider-layer codes intact, such as the pipeline's per-stage reporting,
// use EmbedQuery and Search directly.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Candidate, error) {
	vector, err := r.EmbedQuery(ctx, query)
	if err != nil {
		return nil, curioerr.Wrap(err, curioerr.CodeRetrieveEmbedFailure, "embedding query")
	}
	return r.Search(ctx, vector, k)
}
