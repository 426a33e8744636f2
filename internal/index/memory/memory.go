// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

// Package memory provides an exact brute-force index suited to corpora that
// fit comfortably in process memory.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/curio-dev/curio/internal/index"
	"github.com/curio-dev/curio/pkg/types"
)

func init() {
	index.RegisterBackend("memory", func(cfg index.Config) (index.Index, error) {
		return New(cfg.Dimensions, cfg.Metric), nil
	})
}

// Compile-time interface check.
var _ index.Index = (*Index)(nil)

type entry struct {
	vector []float32
	mag    float64 // precomputed magnitude, used by the cosine metric
}

// Index is an in-memory exact nearest-neighbor index. Queries take the read
// lock; Insert and Remove serialize on the write lock, so entry replacement
// is atomic from the perspective of any concurrent query.
type Index struct {
	mu      sync.RWMutex
	entries map[string]entry
	dims    int
	metric  types.Metric
}

// New creates an empty index with the given dimensionality and metric.
func New(dims int, metric types.Metric) *Index {
	return &Index{
		entries: map[string]entry{},
		dims:    dims,
		metric:  metric,
	}
}

func (ix *Index) Insert(_ context.Context, id string, vector []float32) error {
	if err := index.ValidateVector(vector, ix.dims); err != nil {
		return err
	}

	cp := make([]float32, len(vector))
	copy(cp, vector)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries[id] = entry{vector: cp, mag: magnitude(cp)}
	return nil
}

func (ix *Index) Remove(_ context.Context, id string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.entries, id)
	return nil
}

func (ix *Index) Query(_ context.Context, vector []float32, k int) ([]index.Hit, error) {
	if k < 1 {
		return nil, index.ErrInvalidK
	}
	if err := index.ValidateVector(vector, ix.dims); err != nil {
		return nil, err
	}

	var qm float64
	if ix.metric == types.MetricCosine {
		qm = magnitude(vector)
		if qm == 0 {
			return nil, nil
		}
	}

	ix.mu.RLock()
	hits := make([]index.Hit, 0, len(ix.entries))
	for id, e := range ix.entries {
		var score float64
		switch ix.metric {
		case types.MetricCosine:
			if e.mag == 0 {
				continue
			}
			score = dot(vector, e.vector) / (qm * e.mag)
		default: // types.MetricL2
			score = -euclidean(vector, e.vector)
		}
		if math.IsNaN(score) {
			continue
		}
		hits = append(hits, index.Hit{ID: id, Score: score})
	}
	ix.mu.RUnlock()

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].ID < hits[b].ID
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (ix *Index) Count(_ context.Context) (int64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return int64(len(ix.entries)), nil
}

func (ix *Index) Close() error { return nil }

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
