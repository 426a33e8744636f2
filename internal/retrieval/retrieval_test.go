// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package retrieval_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curio-dev/curio/internal/corpus"
	"github.com/curio-dev/curio/internal/index"
	indexmemory "github.com/curio-dev/curio/internal/index/memory"
	"github.com/curio-dev/curio/internal/provider"
	"github.com/curio-dev/curio/internal/retrieval"
	curioerr "github.com/curio-dev/curio/pkg/errors"
	"github.com/curio-dev/curio/pkg/types"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func (s *stubEmbedder) Dimensions() int  { return len(s.vec) }
func (s *stubEmbedder) ModelRef() string { return "stub/embed-1" }

type stubRouter struct {
	embedder provider.Embedder
	err      error
	gotRef   string
}

func (s *stubRouter) RouteEmbedder(_ context.Context, ref string) (provider.Embedder, error) {
	s.gotRef = ref
	if s.err != nil {
		return nil, s.err
	}
	return s.embedder, nil
}

func (s *stubRouter) RouteGenerator(_ context.Context, _ string) (provider.Generator, error) {
	return nil, stderrors.New("no generators in retrieval tests")
}

type failIndex struct {
	err error
}

func (f *failIndex) Query(_ context.Context, _ []float32, _ int) ([]index.Hit, error) {
	return nil, f.err
}
func (f *failIndex) Insert(_ context.Context, _ string, _ []float32) error { return nil }
func (f *failIndex) Remove(_ context.Context, _ string) error              { return nil }
func (f *failIndex) Count(_ context.Context) (int64, error)                { return 0, nil }
func (f *failIndex) Close() error                                          { return nil }

type failStore struct {
	err error
}

func (f *failStore) Put(_ context.Context, _ *corpus.Item) error { return f.err }
func (f *failStore) Get(_ context.Context, _ string) (*corpus.Item, error) {
	return nil, f.err
}
func (f *failStore) GetBatch(_ context.Context, _ []string) (map[string]*corpus.Item, error) {
	return nil, f.err
}
func (f *failStore) Delete(_ context.Context, _ string) error                   { return f.err }
func (f *failStore) ForEach(_ context.Context, _ func(*corpus.Item) error) error { return f.err }
func (f *failStore) Count(_ context.Context) (int64, error)                     { return 0, f.err }
func (f *failStore) Close() error                                               { return nil }

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

// seedItem puts an item in the store and indexes its vector under the same id.
func seedItem(t *testing.T, store corpus.Store, idx index.Index, id, category string, price float64, vec []float32) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), &corpus.Item{
		ID:          id,
		Category:    category,
		Price:       price,
		Description: "test item " + id,
		Signals:     map[string]float64{"popularity": 0.5},
	}))
	require.NoError(t, idx.Insert(context.Background(), id, vec))
}

// newCatalog builds a three-item corpus whose cosine ordering against the
// query vector (1, 0, 0) is item-a, item-b, item-c.
func newCatalog(t *testing.T) (corpus.Store, index.Index) {
	t.Helper()
	store := corpus.NewMemoryStore()
	idx := indexmemory.New(3, types.MetricCosine)

	seedItem(t, store, idx, "item-a", "footwear", 80, []float32{1, 0, 0})
	seedItem(t, store, idx, "item-b", "footwear", 120, []float32{0.9, 0.1, 0})
	seedItem(t, store, idx, "item-c", "apparel", 50, []float32{0, 1, 0})
	return store, idx
}

var queryVec = []float32{1, 0, 0}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

func TestRetrieverSearch(t *testing.T) {
	store, idx := newCatalog(t)
	r := retrieval.New(&stubRouter{}, "", idx, store, nil)

	t.Run("joins corpus metadata in index order", func(t *testing.T) {
		candidates, err := r.Search(context.Background(), queryVec, 3)
		require.NoError(t, err)
		require.Len(t, candidates, 3)

		assert.Equal(t, "item-a", candidates[0].Item.ID)
		assert.Equal(t, "item-b", candidates[1].Item.ID)
		assert.Equal(t, "item-c", candidates[2].Item.ID)

		// Metadata comes along with the hit.
		assert.Equal(t, "footwear", candidates[0].Item.Category)
		assert.Equal(t, 80.0, candidates[0].Item.Price)
		assert.Equal(t, 0.5, candidates[0].Item.Signals["popularity"])

		// Similarity is monotonically non-increasing, positions are 1-based.
		assert.InDelta(t, 1.0, candidates[0].Similarity, 1e-6)
		assert.GreaterOrEqual(t, candidates[0].Similarity, candidates[1].Similarity)
		assert.GreaterOrEqual(t, candidates[1].Similarity, candidates[2].Similarity)
		for i, c := range candidates {
			assert.Equal(t, i+1, c.Position)
			assert.Zero(t, c.Score, "rank score is assigned by the ranking engine")
		}
	})

	t.Run("k larger than corpus returns what exists", func(t *testing.T) {
		candidates, err := r.Search(context.Background(), queryVec, 50)
		require.NoError(t, err)
		assert.Len(t, candidates, 3)
	})

	t.Run("k limits results", func(t *testing.T) {
		candidates, err := r.Search(context.Background(), queryVec, 1)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "item-a", candidates[0].Item.ID)
	})
}

func TestRetrieverSearchEmptyIndex(t *testing.T) {
	store := corpus.NewMemoryStore()
	idx := indexmemory.New(3, types.MetricCosine)
	r := retrieval.New(&stubRouter{}, "", idx, store, nil)

	candidates, err := r.Search(context.Background(), queryVec, 5)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestRetrieverSearchDropsStaleIndexEntries(t *testing.T) {
	store, idx := newCatalog(t)
	// An id the index still knows about but the corpus no longer holds.
	require.NoError(t, idx.Insert(context.Background(), "ghost", []float32{0.95, 0.05, 0}))

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	r := retrieval.New(&stubRouter{}, "", idx, store, logger)

	candidates, err := r.Search(context.Background(), queryVec, 4)
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	for i, c := range candidates {
		assert.NotEqual(t, "ghost", c.Item.ID)
		assert.Equal(t, i+1, c.Position, "positions stay contiguous after a drop")
	}

	logged := logBuf.String()
	assert.Contains(t, logged, "stale index entry")
	assert.Contains(t, logged, "ghost")
}

func TestRetrieverSearchIndexFailure(t *testing.T) {
	r := retrieval.New(&stubRouter{}, "", &failIndex{err: stderrors.New("index offline")}, corpus.NewMemoryStore(), nil)

	candidates, err := r.Search(context.Background(), queryVec, 5)
	require.Error(t, err)
	assert.Nil(t, candidates)
	assert.True(t, curioerr.HasCode(err, curioerr.CodeRetrieveIndexFailure))
	assert.True(t, curioerr.IsRetrieval(err))
	assert.Contains(t, err.Error(), "index offline")
}

func TestRetrieverSearchCorpusFailure(t *testing.T) {
	idx := indexmemory.New(3, types.MetricCosine)
	require.NoError(t, idx.Insert(context.Background(), "item-a", queryVec))

	r := retrieval.New(&stubRouter{}, "", idx, &failStore{err: stderrors.New("db locked")}, nil)

	candidates, err := r.Search(context.Background(), queryVec, 5)
	require.Error(t, err)
	assert.Nil(t, candidates)
	assert.True(t, curioerr.HasCode(err, curioerr.CodeRetrieveCorpusFailure))
	assert.True(t, curioerr.IsRetrieval(err))
}

// ---------------------------------------------------------------------------
// EmbedQuery
// ---------------------------------------------------------------------------

func TestRetrieverEmbedQuery(t *testing.T) {
	router := &stubRouter{embedder: &stubEmbedder{vec: queryVec}}
	r := retrieval.New(router, "openai/text-embedding-3-small", &failIndex{}, corpus.NewMemoryStore(), nil)

	vec, err := r.EmbedQuery(context.Background(), "running shoes")
	require.NoError(t, err)
	assert.Equal(t, queryVec, vec)
	assert.Equal(t, "openai/text-embedding-3-small", router.gotRef)
}

func TestRetrieverEmbedQueryRoutingErrorPassesThrough(t *testing.T) {
	router := &stubRouter{err: curioerr.New(curioerr.CodeProviderNoDefault, "no default embedder configured")}
	r := retrieval.New(router, "", &failIndex{}, corpus.NewMemoryStore(), nil)

	_, err := r.EmbedQuery(context.Background(), "running shoes")
	require.Error(t, err)
	assert.True(t, curioerr.HasCode(err, curioerr.CodeProviderNoDefault))
	assert.False(t, curioerr.IsRetrieval(err))
}

// ---------------------------------------------------------------------------
// Retrieve
// ---------------------------------------------------------------------------

func TestRetrieverRetrieve(t *testing.T) {
	store, idx := newCatalog(t)
	router := &stubRouter{embedder: &stubEmbedder{vec: queryVec}}
	r := retrieval.New(router, "", idx, store, nil)

	candidates, err := r.Retrieve(context.Background(), "running shoes", 2)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "item-a", candidates[0].Item.ID)
	assert.Equal(t, "item-b", candidates[1].Item.ID)
}

func TestRetrieverRetrieveWrapsEmbedFailure(t *testing.T) {
	router := &stubRouter{embedder: &stubEmbedder{err: stderrors.New("connection refused")}}
	r := retrieval.New(router, "", &failIndex{}, corpus.NewMemoryStore(), nil)

	candidates, err := r.Retrieve(context.Background(), "running shoes", 5)
	require.Error(t, err)
	assert.Nil(t, candidates)
	assert.True(t, curioerr.HasCode(err, curioerr.CodeRetrieveEmbedFailure))
	assert.True(t, curioerr.IsRetrieval(err))
}

func TestRetrieverRetrieveKeepsCodedEmbedFailure(t *testing.T) {
	embedErr := curioerr.New(curioerr.CodeEmbedUpstreamFailure, "502 from provider")
	router := &stubRouter{embedder: &stubEmbedder{err: embedErr}}
	r := retrieval.New(router, "", &failIndex{}, corpus.NewMemoryStore(), nil)

	_, err := r.Retrieve(context.Background(), "running shoes", 5)
	require.Error(t, err)
	// The deepest code wins, so the provider-layer classification survives
	// the retrieval wrap and the gateway still maps it to 502.
	assert.Equal(t, curioerr.CodeEmbedUpstreamFailure, curioerr.CodeOf(err))
	assert.True(t, curioerr.IsEmbedding(err))
	assert.True(t, curioerr.IsUpstreamFailure(err))
}
