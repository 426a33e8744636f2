// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

// Package ingest writes items into the corpus and the vector index together.
// It is the single write path shared by the HTTP item endpoints and the bulk
// loader, so embed-on-ingest and the corpus/index write order are identical
// everywhere.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/curio-dev/curio/internal/corpus"
	"github.com/curio-dev/curio/internal/index"
	"github.com/curio-dev/curio/internal/provider"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// Ingestor validates items, computes missing embeddings through the provider
// router, and writes the corpus row before the index entry. It holds no
// per-request state and is safe for concurrent use.
type Ingestor struct {
	router      provider.Router
	embedderRef string
	store       corpus.Store
	index       index.Index
	dims        int
	logger      *slog.Logger
}

// New creates an Ingestor. embedderRef is a "provider/model" reference or
// empty to use the router's default embedder. dims is the index
// dimensionality every embedding must match. A nil logger falls back to
// slog.Default().
func New(router provider.Router, embedderRef string, store corpus.Store, idx index.Index, dims int, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		router:      router,
		embedderRef: embedderRef,
		store:       store,
		index:       idx,
		dims:        dims,
		logger:      logger.With("component", "ingest"),
	}
}

// Upsert inserts or replaces item. When the item carries no embedding its
// description is embedded first; either way the vector is validated against
// the index dimensionality before anything is written. The corpus row is
// written before the index entry, so a failure between the two leaves an
// unindexed item rather than a dangling index id. Returns the stored item,
// embedding included.
func (g *Ingestor) Upsert(ctx context.Context, item *corpus.Item) (*corpus.Item, error) {
	if item == nil {
		return nil, curioerr.New(curioerr.CodeCorpusItemInvalid, "item must not be nil")
	}
	if err := item.Validate(); err != nil {
		return nil, curioerr.Wrap(err, curioerr.CodeCorpusItemInvalid, "validating item")
	}

	stored := item.Clone()
	if len(stored.Embedding) == 0 {
		if strings.TrimSpace(stored.Description) == "" {
			return nil, curioerr.Errorf(curioerr.CodeCorpusItemInvalid,
				"item %s has neither an embedding nor a description to embed", stored.ID)
		}
		vector, err := g.embed(ctx, stored.Description)
		if err != nil {
			return nil, err
		}
		stored.Embedding = vector
		g.logger.Debug("embedded item description", "item_id", stored.ID, "dimensions", len(vector))
	}

	if err := index.ValidateVector(stored.Embedding, g.dims); err != nil {
		return nil, curioerr.Wrapf(err, curioerr.CodeIndexVectorInvalid,
			"item %s embedding rejected by index", stored.ID)
	}

	if err := g.store.Put(ctx, stored); err != nil {
		return nil, wrapStoreErr(err, "storing item "+stored.ID)
	}
	if err := g.index.Insert(ctx, stored.ID, stored.Embedding); err != nil {
		// The corpus row stays behind; a retried upsert overwrites it and
		// retrieval never surfaces unindexed items.
		g.logger.Warn("item stored but not indexed", "item_id", stored.ID, "error", err)
		return nil, curioerr.Wrapf(err, curioerr.CodeIndexDatabaseFailure, "indexing item %s", stored.ID)
	}

	g.logger.Debug("item upserted", "item_id", stored.ID)

	final, err := g.store.Get(ctx, stored.ID)
	if err != nil {
		return nil, wrapStoreErr(err, "reloading stored item "+stored.ID)
	}
	return final, nil
}

// Get returns the item for id.
func (g *Ingestor) Get(ctx context.Context, id string) (*corpus.Item, error) {
	item, err := g.store.Get(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "loading item "+id)
	}
	return item, nil
}

// Delete removes id from the index first and the corpus second, so a failure
// between the two leaves an unindexed row instead of a dangling index id.
// Deleting an absent id is a not-found error.
func (g *Ingestor) Delete(ctx context.Context, id string) error {
	if id == "" {
		return curioerr.New(curioerr.CodeCorpusItemInvalid, "item id must not be empty")
	}

	if err := g.index.Remove(ctx, id); err != nil {
		return curioerr.Wrapf(err, curioerr.CodeIndexDatabaseFailure, "removing item %s from index", id)
	}
	if err := g.store.Delete(ctx, id); err != nil {
		return wrapStoreErr(err, "deleting item "+id)
	}

	g.logger.Debug("item deleted", "item_id", id)
	return nil
}

// Count returns the number of items in the corpus.
func (g *Ingestor) Count(ctx context.Context) (int64, error) {
	n, err := g.store.Count(ctx)
	if err != nil {
		return 0, wrapStoreErr(err, "counting items")
	}
	return n, nil
}

// embed resolves the configured embedder and embeds text. Provider-layer
// codes pass through untouched so callers can tell invalid input apart from
// upstream failure.
func (g *Ingestor) embed(ctx context.Context, text string) ([]float32, error) {
	embedder, err := g.router.RouteEmbedder(ctx, g.embedderRef)
	if err != nil {
		return nil, err
	}
	return embedder.Embed(ctx, text)
}

// wrapStoreErr translates corpus sentinel errors into coded errors.
func wrapStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, corpus.ErrNotFound):
		return curioerr.Wrap(err, curioerr.CodeCorpusItemNotFound, msg)
	case errors.Is(err, corpus.ErrInvalidInput):
		return curioerr.Wrap(err, curioerr.CodeCorpusItemInvalid, msg)
	default:
		return curioerr.Wrap(err, curioerr.CodeCorpusDatabaseFailure, msg)
	}
}
