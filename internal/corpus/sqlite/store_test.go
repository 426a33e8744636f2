// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/curio-dev/curio/internal/corpus"
	"github.com/curio-dev/curio/internal/corpus/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "curio-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, name+".db")
}

func newTestStore(t *testing.T) *sqlite.ItemStore {
	t.Helper()
	s, err := sqlite.NewItemStore(testDBPath(t, "items"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleItem(id string) *corpus.Item {
	return &corpus.Item{
		ID:          id,
		Category:    "footwear",
		Price:       80,
		Description: "trail running shoe",
		Embedding:   []float32{0.25, -0.5, 0.75},
		Signals:     map[string]float64{"popularity": 0.9},
	}
}

func TestItemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, sampleItem("item-1")))

	got, err := s.Get(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "item-1", got.ID)
	assert.Equal(t, "footwear", got.Category)
	assert.Equal(t, 80.0, got.Price)
	assert.Equal(t, []float32{0.25, -0.5, 0.75}, got.Embedding)
	assert.Equal(t, 0.9, got.Signals["popularity"])
	assert.False(t, got.CreatedAt.IsZero())
}

func TestItemStoreGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, corpus.ErrNotFound)
}

func TestItemStorePutReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, sampleItem("item-1")))
	first, err := s.Get(ctx, "item-1")
	require.NoError(t, err)

	updated := sampleItem("item-1")
	updated.Price = 95
	updated.Embedding = []float32{1, 2, 3}
	require.NoError(t, s.Put(ctx, updated))

	got, err := s.Get(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, 95.0, got.Price)
	assert.Equal(t, []float32{1, 2, 3}, got.Embedding)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestItemStorePutRejectsInvalid(t *testing.T) {
	s := newTestStore(t)

	bad := sampleItem("item-1")
	bad.Price = -5
	err := s.Put(context.Background(), bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, corpus.ErrInvalidInput)
}

func TestItemStoreGetBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, sampleItem("item-1")))
	require.NoError(t, s.Put(ctx, sampleItem("item-2")))

	found, err := s.GetBatch(ctx, []string{"item-2", "ghost", "item-1"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Contains(t, found, "item-1")
	assert.Contains(t, found, "item-2")

	empty, err := s.GetBatch(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestItemStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, sampleItem("item-1")))
	require.NoError(t, s.Delete(ctx, "item-1"))

	_, err := s.Get(ctx, "item-1")
	assert.ErrorIs(t, err, corpus.ErrNotFound)

	err = s.Delete(ctx, "item-1")
	assert.ErrorIs(t, err, corpus.ErrNotFound)
}

func TestItemStoreForEach(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, sampleItem("item-b")))
	require.NoError(t, s.Put(ctx, sampleItem("item-a")))

	var ids []string
	err := s.ForEach(ctx, func(item *corpus.Item) error {
		ids = append(ids, item.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"item-a", "item-b"}, ids)
}

func TestSqliteBackendRegistered(t *testing.T) {
	s, err := corpus.Open(corpus.Config{Backend: "sqlite", Path: testDBPath(t, "reg")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Put(context.Background(), sampleItem("item-1")))
}

func TestSqliteBackendRequiresPath(t *testing.T) {
	_, err := corpus.Open(corpus.Config{Backend: "sqlite"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database path")
}
