// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package corpus

import "context"

// Store holds item metadata and precomputed embeddings. It supports lookup
// by identifier and bulk iteration for (re)building a vector index.
type Store interface {
	// Put inserts or replaces an item. Replace is atomic per item: a
	// concurrent Get sees either the old or the new item, never a mix.
	Put(ctx context.Context, item *Item) error

	Get(ctx context.Context, id string) (*Item, error)

	// GetBatch returns the items that exist among ids, keyed by ID.
	// Missing ids are simply absent from the result, not an error.
	GetBatch(ctx context.Context, ids []string) (map[string]*Item, error)

	Delete(ctx context.Context, id string) error

	// ForEach iterates the full corpus in unspecified order, stopping at
	// the first error returned by fn.
	ForEach(ctx context.Context, fn func(*Item) error) error

	Count(ctx context.Context) (int64, error)

	Close() error
}
