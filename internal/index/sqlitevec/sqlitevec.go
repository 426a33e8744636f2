// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

// Package sqlitevec provides an on-disk index backed by SQLite with the
// sqlite-vec extension, suited to corpora too large to rescan in memory.
package sqlitevec

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/curio-dev/curio/internal/index"
	"github.com/curio-dev/curio/pkg/types"
)

func init() {
	sqlite_vec.Auto()

	index.RegisterBackend("sqlitevec", func(cfg index.Config) (index.Index, error) {
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlitevec index backend requires a database path")
		}
		return New(cfg.Path, cfg.Dimensions, cfg.Metric)
	})
}

// Compile-time interface check.
var _ index.Index = (*Index)(nil)

// Index implements index.Index backed by a vec0 virtual table. The metric
// is baked into the table definition, so an existing database must be
// reopened with the metric it was created with.
type Index struct {
	db     *sql.DB
	dims   int
	metric types.Metric
}

// New opens (or creates) a SQLite database at dbPath and initialises the
// vec0 virtual table for the given dimensionality and metric.
func New(dbPath string, dims int, metric types.Metric) (*Index, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db, dims, metric); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating vectors table: %w", err)
	}

	return &Index{db: db, dims: dims, metric: metric}, nil
}

func migrate(db *sql.DB, dims int, metric types.Metric) error {
	column := fmt.Sprintf("embedding float[%d]", dims)
	if metric == types.MetricCosine {
		column += " distance_metric=cosine"
	}
	ddl := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(id TEXT PRIMARY KEY, %s)`, column)
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("creating vectors virtual table: %w", err)
	}
	return nil
}

func (ix *Index) Insert(ctx context.Context, id string, vector []float32) error {
	if err := index.ValidateVector(vector, ix.dims); err != nil {
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return fmt.Errorf("serializing vector %s: %w", id, err)
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// vec0 does not support ON CONFLICT; delete first for upsert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting existing vector %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO vectors(id, embedding) VALUES (?, ?)`, id, blob); err != nil {
		return fmt.Errorf("inserting vector %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vector insert: %w", err)
	}
	return nil
}

func (ix *Index) Remove(ctx context.Context, id string) error {
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting vector %s: %w", id, err)
	}
	return nil
}

func (ix *Index) Query(ctx context.Context, vector []float32, k int) ([]index.Hit, error) {
	if k < 1 {
		return nil, index.ErrInvalidK
	}
	if err := index.ValidateVector(vector, ix.dims); err != nil {
		return nil, err
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, fmt.Errorf("serializing query vector: %w", err)
	}

	const q = `SELECT id, distance FROM vectors WHERE embedding MATCH ? AND k = ? ORDER BY distance`

	rows, err := ix.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []index.Hit
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("scanning vector result: %w", err)
		}
		hits = append(hits, index.Hit{ID: id, Score: ix.score(distance)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector results: %w", err)
	}

	// vec0 breaks distance ties by rowid; re-sort so ties order by id.
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].ID < hits[b].ID
	})

	return hits, nil
}

// score converts a vec0 distance into a similarity where higher is more
// similar: 1-distance for cosine (yielding [-1, 1]), negated for L2.
func (ix *Index) score(distance float64) float64 {
	if ix.metric == types.MetricCosine {
		return 1 - distance
	}
	return -distance
}

func (ix *Index) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (ix *Index) Close() error {
	return ix.db.Close()
}
