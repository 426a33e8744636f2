// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package rank

import (
	"context"
	"sort"

	"github.com/curio-dev/curio/internal/retrieval"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// Engine applies filters and ranking to retrieved candidates. It is
// immutable after construction and safe for concurrent use.
type Engine struct {
	cfg     *Config
	signals []string
	mmr     *MMR
}

// NewEngine validates cfg and builds an engine. A nil cfg uses the default
// similarity-only configuration.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg = cfg.Clone()
	e := &Engine{cfg: cfg, signals: cfg.signalNames()}
	if cfg.MMRLambda < 1 {
		e.mmr = NewMMR(cfg.MMRLambda)
	}
	return e, nil
}

// Apply filters candidates, scores the survivors, and returns up to k of
// them ordered by final score descending with ties broken by item id
// ascending. Fewer than k survivors is a short result, not an error, and is
// never padded. With diversity reranking configured, MMR order replaces
// strict score order before truncation.
func (e *Engine) Apply(ctx context.Context, candidates []retrieval.Candidate, filters map[string]any, k int) ([]retrieval.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, curioerr.Errorf(curioerr.CodeRankRequestInvalid, "k must be at least 1, got %d", k)
	}

	constraints, err := e.cfg.ParseFilters(filters)
	if err != nil {
		return nil, err
	}

	kept := make([]retrieval.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		if !matchesAll(constraints, cand) {
			continue
		}
		cand.Score = e.score(cand)
		kept = append(kept, cand)
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].Item.ID < kept[j].Item.ID
	})

	if e.mmr != nil {
		kept = e.mmr.Rerank(kept, k)
	} else if len(kept) > k {
		kept = kept[:k]
	}

	for i := range kept {
		kept[i].Position = i + 1
	}
	return kept, nil
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() *Config {
	return e.cfg.Clone()
}

func (e *Engine) score(cand retrieval.Candidate) float64 {
	score := e.cfg.Weights.Similarity * cand.Similarity
	// Fixed signal order keeps float summation identical across runs.
	for _, name := range e.signals {
		if v, ok := cand.Item.Signals[name]; ok {
			score += e.cfg.Weights.Signals[name] * v
		}
	}
	return score
}

func matchesAll(constraints []Constraint, cand retrieval.Candidate) bool {
	for _, constraint := range constraints {
		if !constraint.Matches(cand.Item) {
			return false
		}
	}
	return true
}
