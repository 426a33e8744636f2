// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package corpus

import (
	"fmt"
	"time"
)

// Item is a single recommendable entry in the corpus. Items are immutable
// once indexed except for re-embedding on description update, which replaces
// the vector index entry for the same ID.
type Item struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	Embedding   []float32 `json:"embedding,omitempty"`

	// Signals carries named business signals (popularity, recency, margin)
	// consumed by the ranking engine. Keys are declared in the ranking
	// configuration; unknown keys are ignored by scoring.
	Signals map[string]float64 `json:"signals,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the invariants an item must hold before it enters the
// corpus. The embedding is allowed to be empty here: ingestion computes it
// before indexing.
func (it *Item) Validate() error {
	if it.ID == "" {
		return fmt.Errorf("%w: item id must not be empty", ErrInvalidInput)
	}
	if it.Price < 0 {
		return fmt.Errorf("%w: item %s price must be non-negative, got %v", ErrInvalidInput, it.ID, it.Price)
	}
	return nil
}

// Attribute resolves a filterable attribute by name. Structured fields are
// addressed by their canonical names; any other name is looked up in Signals.
func (it *Item) Attribute(name string) (any, bool) {
	switch name {
	case "id":
		return it.ID, true
	case "category":
		return it.Category, true
	case "price":
		return it.Price, true
	}
	if v, ok := it.Signals[name]; ok {
		return v, true
	}
	return nil, false
}

// Clone returns a deep copy so callers can hold items without aliasing
// store-owned slices and maps.
func (it *Item) Clone() *Item {
	cp := *it
	if it.Embedding != nil {
		cp.Embedding = make([]float32, len(it.Embedding))
		copy(cp.Embedding, it.Embedding)
	}
	if it.Signals != nil {
		cp.Signals = make(map[string]float64, len(it.Signals))
		for k, v := range it.Signals {
			cp.Signals[k] = v
		}
	}
	return &cp
}
