// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package server

import (
	"context"
	"time"

	"github.com/curio-dev/curio/internal/corpus"
	"github.com/curio-dev/curio/internal/pipeline"
	"github.com/curio-dev/curio/internal/provider"
	"github.com/curio-dev/curio/internal/retrieval"
)

// Services holds the dependencies injected into route handlers. Each field is
// an interface so subsystems can be stubbed in tests. Handlers answer 503
// when a service they need is nil.
type Services struct {
	// Recommender runs recommendation requests. *pipeline.Pipeline
	// satisfies this.
	Recommender RecommendService

	// Items is the item read/write path. *ingest.Ingestor satisfies this.
	Items ItemService

	// Providers supplies provider health snapshots for the status endpoint.
	// Optional; nil omits provider snapshots. *provider.Registry satisfies
	// this.
	Providers ProviderStatusService
}

// RecommendService runs a recommendation request end to end.
type RecommendService interface {
	Recommend(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	Models() pipeline.ModelConfig
}

// ItemService reads and writes corpus items, keeping the vector index in
// step on every write.
type ItemService interface {
	Upsert(ctx context.Context, item *corpus.Item) (*corpus.Item, error)
	Get(ctx context.Context, id string) (*corpus.Item, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// ProviderStatusService reports provider availability.
type ProviderStatusService interface {
	Statuses(ctx context.Context) []provider.ProviderStatus
}

// RankedItem is the REST representation of one recommended item.
type RankedItem struct {
	ID          string             `json:"id" doc:"Item identifier"`
	Category    string             `json:"category,omitempty" doc:"Item category"`
	Price       float64            `json:"price" doc:"Item price"`
	Description string             `json:"description,omitempty" doc:"Item description"`
	Signals     map[string]float64 `json:"signals,omitempty" doc:"Business signals"`
	Similarity  float64            `json:"similarity" doc:"Query similarity, higher is closer"`
	Score       float64            `json:"score" doc:"Final rank score"`
	Position    int                `json:"position" doc:"1-based rank"`
}

// RecommendResult is the REST representation of a recommendation response.
type RecommendResult struct {
	RequestID         string       `json:"request_id" doc:"Server-assigned request identifier"`
	Query             string       `json:"query" doc:"Echoed query"`
	Items             []RankedItem `json:"items" doc:"Ranked recommendations, best first"`
	Explanation       string       `json:"explanation,omitempty" doc:"Natural-language explanation when requested and available"`
	ExplanationStatus string       `json:"explanation_status" doc:"generated, unavailable, or disabled"`
	ConfigVersion     string       `json:"config_version" doc:"Model configuration version that produced this result"`
	DurationMS        int64        `json:"duration_ms" doc:"Server-side processing time"`
}

// ItemDetail is the REST representation of a stored item. The raw embedding
// stays server-side; only its length is reported.
type ItemDetail struct {
	ID          string             `json:"id" doc:"Item identifier"`
	Category    string             `json:"category,omitempty" doc:"Item category"`
	Price       float64            `json:"price" doc:"Item price"`
	Description string             `json:"description,omitempty" doc:"Item description"`
	Signals     map[string]float64 `json:"signals,omitempty" doc:"Business signals"`
	Dimensions  int                `json:"dimensions" doc:"Stored embedding length"`
	CreatedAt   time.Time          `json:"created_at" doc:"First insert time"`
	UpdatedAt   time.Time          `json:"updated_at" doc:"Last write time"`
}

// ProviderStatusDetail is the REST representation of one provider's
// availability snapshot.
type ProviderStatusDetail struct {
	Provider  string                  `json:"provider" doc:"Provider name"`
	Available bool                    `json:"available" doc:"Whether the provider is currently usable"`
	Message   string                  `json:"message,omitempty" doc:"Human-readable status"`
	Health    *provider.HealthMetrics `json:"health,omitempty" doc:"Failure and cooldown metrics"`
}

// StatusDetail is the REST representation of the gateway status.
type StatusDetail struct {
	Status        string                 `json:"status" example:"ok" doc:"Gateway status"`
	Version       string                 `json:"version" doc:"Gateway build version"`
	ConfigVersion string                 `json:"config_version" doc:"Active model configuration version"`
	CorpusBackend string                 `json:"corpus_backend" doc:"Configured corpus backend"`
	IndexBackend  string                 `json:"index_backend" doc:"Configured index backend"`
	Items         int64                  `json:"items" doc:"Number of items in the corpus"`
	Providers     []ProviderStatusDetail `json:"providers,omitempty" doc:"Provider availability snapshots"`
}

// rankedItemFromCandidate maps a retrieval candidate onto its REST shape.
func rankedItemFromCandidate(c retrieval.Candidate) RankedItem {
	return RankedItem{
		ID:          c.Item.ID,
		Category:    c.Item.Category,
		Price:       c.Item.Price,
		Description: c.Item.Description,
		Signals:     c.Item.Signals,
		Similarity:  c.Similarity,
		Score:       c.Score,
		Position:    c.Position,
	}
}

// itemDetailFromItem maps a corpus item onto its REST shape.
func itemDetailFromItem(it *corpus.Item) ItemDetail {
	return ItemDetail{
		ID:          it.ID,
		Category:    it.Category,
		Price:       it.Price,
		Description: it.Description,
		Signals:     it.Signals,
		Dimensions:  len(it.Embedding),
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}
}
