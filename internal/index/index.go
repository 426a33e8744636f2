// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

// Package index defines the nearest-neighbor capability the retrieval stage
// queries, with interchangeable backends selected via configuration.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	curioerr "github.com/curio-dev/curio/pkg/errors"
	"github.com/curio-dev/curio/pkg/types"
)

// defaultDimensions is the default embedding dimension (matches OpenAI text-embedding-3-small).
const defaultDimensions = 1536

// Sentinel errors for index operations.
var (
	// ErrDimensionMismatch indicates a vector's length does not match the
	// dimensionality the index was built with.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidVector indicates a vector contains NaN or Inf components.
	ErrInvalidVector = errors.New("invalid vector")

	// ErrInvalidK indicates a query asked for fewer than one neighbor.
	ErrInvalidK = errors.New("k must be at least 1")
)

// Hit is a single nearest-neighbor result. Score is a similarity: higher is
// more similar regardless of the underlying metric (cosine similarity for
// cosine-built indexes, negated distance for L2).
type Hit struct {
	ID    string
	Score float64
}

// Index is a nearest-neighbor queryable set of (id, vector) entries.
// One entry per id; Insert replaces the vector for an existing id. All
// methods are safe for concurrent use, and a replace is atomic from the
// perspective of any concurrent Query.
type Index interface {
	// Query returns up to k hits ordered by score descending, ties broken
	// by id ascending. A zero-magnitude query under the cosine metric
	// returns no hits.
	Query(ctx context.Context, vector []float32, k int) ([]Hit, error)

	// Insert adds or replaces the vector for id. Re-inserting an unchanged
	// (id, vector) pair leaves query results unchanged.
	Insert(ctx context.Context, id string, vector []float32) error

	// Remove deletes the entry for id. Removing an absent id is a no-op.
	Remove(ctx context.Context, id string) error

	Count(ctx context.Context) (int64, error)

	Close() error
}

// Config controls which backend the index factory uses and how the index
// is built. Metric is fixed at construction time.
type Config struct {
	Backend    string // "memory" or "sqlitevec"; empty defaults to "memory".
	Path       string // database file path; unused by the memory backend.
	Dimensions int    // embedding dimensions; 0 uses the default (1536).
	Metric     types.Metric
}

// Factory creates an index from its configuration.
type Factory func(cfg Config) (Index, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory function for a named index backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// Open creates an index for the configured backend, applying defaults for
// backend name, dimensions, and metric.
func Open(cfg Config) (Index, error) {
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaultDimensions
	}
	if cfg.Metric == "" {
		cfg.Metric = types.MetricCosine
	}
	if !cfg.Metric.Valid() {
		return nil, curioerr.Errorf(curioerr.CodeIndexMetricUnsupported, "unsupported distance metric: %q", cfg.Metric)
	}

	factoriesMu.RLock()
	factory, ok := factories[cfg.Backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, curioerr.Errorf(curioerr.CodeIndexBackendUnsupported, "unsupported index backend: %q", cfg.Backend)
	}

	return factory(cfg)
}

// ValidateVector checks a vector against the index dimensionality and
// rejects NaN or Inf components. Backends call this before touching state.
func ValidateVector(vector []float32, dims int) error {
	if len(vector) != dims {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), dims)
	}
	for _, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: contains NaN or Inf", ErrInvalidVector)
		}
	}
	return nil
}
