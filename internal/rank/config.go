// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

// Package rank filters retrieved candidates against structured constraints
// and orders the survivors by a weighted combination of similarity and
// business signals.
package rank

import (
	"sort"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// FieldType classifies a filterable attribute for constraint validation.
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeNumber FieldType = "number"
)

// Valid reports whether the field type is one of the supported kinds.
func (ft FieldType) Valid() bool {
	return ft == FieldTypeString || ft == FieldTypeNumber
}

// Weights defines the contribution of each scoring input to the final rank
// score. Weights are applied as-is, without normalization, so the default
// similarity-only configuration leaves the final score equal to the
// similarity score.
type Weights struct {
	// Similarity weights the retrieval similarity score.
	Similarity float64 `json:"similarity"`

	// Signals maps business signal names to their weights. Signals are read
	// from each item; an item missing a weighted signal contributes zero for
	// that signal.
	Signals map[string]float64 `json:"signals,omitempty"`
}

// Config declares the filter vocabulary and scoring weights for the ranking
// engine. The vocabulary is configuration, not code: deployments declare
// which attributes requests may filter on, including numeric business
// signals such as availability.
type Config struct {
	// FilterableFields maps attribute names requests may filter on to their
	// types. Names resolve against structured item fields first, then item
	// signals.
	FilterableFields map[string]FieldType `json:"filterable_fields"`

	Weights Weights `json:"weights"`

	// MMRLambda balances relevance against diversity when reranking.
	// 1.0 (the default) disables diversity reranking and preserves strict
	// score ordering; values below 1.0 trade score order for diversity.
	MMRLambda float64 `json:"mmr_lambda"`
}

// DefaultConfig returns a similarity-only ranking configuration with the
// built-in item attributes filterable.
func DefaultConfig() *Config {
	return &Config{
		FilterableFields: map[string]FieldType{
			"id":       FieldTypeString,
			"category": FieldTypeString,
			"price":    FieldTypeNumber,
		},
		Weights:   Weights{Similarity: 1.0},
		MMRLambda: 1.0,
	}
}

// Validate checks the configuration for values the engine cannot rank with.
func (c *Config) Validate() error {
	for name, ft := range c.FilterableFields {
		if name == "" {
			return curioerr.New(curioerr.CodeConfigValidateInvalidValue, "filterable field name must not be empty")
		}
		if !ft.Valid() {
			return curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue, "filterable field %q has unsupported type %q", name, ft)
		}
	}

	if c.Weights.Similarity < 0 {
		return curioerr.Errorf(curioerr.CodeRankWeightsInvalid, "similarity weight must be non-negative, got %v", c.Weights.Similarity)
	}
	positive := c.Weights.Similarity > 0
	for name, w := range c.Weights.Signals {
		if w < 0 {
			return curioerr.Errorf(curioerr.CodeRankWeightsInvalid, "signal %q weight must be non-negative, got %v", name, w)
		}
		if w > 0 {
			positive = true
		}
	}
	if !positive {
		return curioerr.New(curioerr.CodeRankWeightsInvalid, "at least one weight must be positive")
	}

	if c.MMRLambda < 0 || c.MMRLambda > 1 {
		return curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue, "mmr_lambda must be in [0, 1], got %v", c.MMRLambda)
	}
	return nil
}

// Clone returns a deep copy so the engine can hold the configuration without
// aliasing caller-owned maps.
func (c *Config) Clone() *Config {
	cp := *c
	if c.FilterableFields != nil {
		cp.FilterableFields = make(map[string]FieldType, len(c.FilterableFields))
		for k, v := range c.FilterableFields {
			cp.FilterableFields[k] = v
		}
	}
	if c.Weights.Signals != nil {
		cp.Weights.Signals = make(map[string]float64, len(c.Weights.Signals))
		for k, v := range c.Weights.Signals {
			cp.Weights.Signals[k] = v
		}
	}
	return &cp
}

// signalNames returns the weighted signal names in a fixed order so scoring
// sums floats identically on every run.
func (c *Config) signalNames() []string {
	names := make([]string, 0, len(c.Weights.Signals))
	for name := range c.Weights.Signals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
