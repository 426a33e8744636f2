// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/curio-dev/curio/internal/corpus"
	"github.com/curio-dev/curio/internal/pipeline"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "recommend",
		Method:      http.MethodPost,
		Path:        "/api/v1/recommend",
		Summary:     "Recommend items for a query",
		Tags:        []string{"recommend"},
		Errors:      []int{http.StatusBadRequest, http.StatusBadGateway, http.StatusGatewayTimeout},
	}, s.handleRecommend)

	huma.Register(s.api, huma.Operation{
		OperationID: "upsert-item",
		Method:      http.MethodPut,
		Path:        "/api/v1/items/{id}",
		Summary:     "Insert or replace an item",
		Tags:        []string{"items"},
		Errors:      []int{http.StatusBadRequest, http.StatusBadGateway},
	}, s.handleUpsertItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-item",
		Method:      http.MethodGet,
		Path:        "/api/v1/items/{id}",
		Summary:     "Get an item",
		Tags:        []string{"items"},
		Errors:      []int{http.StatusNotFound},
	}, s.handleGetItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-item",
		Method:      http.MethodDelete,
		Path:        "/api/v1/items/{id}",
		Summary:     "Delete an item",
		Tags:        []string{"items"},
		Errors:      []int{http.StatusNotFound},
	}, s.handleDeleteItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "gateway-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Gateway status",
		Tags:        []string{"system"},
	}, s.handleStatus)
}

// --- Request/Response types for huma ---

type recommendInput struct {
	Body struct {
		Query   string         `json:"query" minLength:"1" doc:"Free-text query to recommend against"`
		Filters map[string]any `json:"filters,omitempty" doc:"Attribute constraints keyed by filterable field"`
		K       int            `json:"k,omitempty" minimum:"0" doc:"Number of results; 0 uses the configured default"`
		Explain bool           `json:"explain,omitempty" doc:"Attach a natural-language explanation"`
	}
}

type recommendOutput struct {
	Body RecommendResult
}

type upsertItemInput struct {
	ID   string `path:"id" maxLength:"256" doc:"Item identifier"`
	Body struct {
		Category    string             `json:"category,omitempty" doc:"Item category"`
		Price       float64            `json:"price" minimum:"0" doc:"Item price"`
		Description string             `json:"description,omitempty" doc:"Item description; embedded on ingest when no embedding is supplied"`
		Embedding   []float32          `json:"embedding,omitempty" doc:"Precomputed embedding vector"`
		Signals     map[string]float64 `json:"signals,omitempty" doc:"Business signals consumed by ranking"`
	}
}

type itemOutput struct {
	Body ItemDetail
}

type itemIDInput struct {
	ID string `path:"id" doc:"Item identifier"`
}

type deleteItemOutput struct {
	Body struct {
		Status string `json:"status" example:"deleted" doc:"Result status"`
		ID     string `json:"id" doc:"Deleted item identifier"`
	}
}

type statusOutput struct {
	Body StatusDetail
}

// --- Handlers ---

func (s *Server) handleRecommend(ctx context.Context, input *recommendInput) (*recommendOutput, error) {
	if s.services == nil || s.services.Recommender == nil {
		return nil, huma.Error503ServiceUnavailable("recommendation pipeline not configured")
	}

	result, err := s.services.Recommender.Recommend(ctx, pipeline.Request{
		Query:   input.Body.Query,
		Filters: input.Body.Filters,
		K:       input.Body.K,
		Explain: input.Body.Explain,
	})
	if err != nil {
		return nil, humaError(err)
	}

	items := make([]RankedItem, len(result.Candidates))
	for i, c := range result.Candidates {
		items[i] = rankedItemFromCandidate(c)
	}

	out := &recommendOutput{}
	out.Body = RecommendResult{
		RequestID:         result.RequestID,
		Query:             result.Query,
		Items:             items,
		Explanation:       result.Explanation,
		ExplanationStatus: result.ExplanationStatus,
		ConfigVersion:     result.ConfigVersion,
		DurationMS:        result.Duration.Milliseconds(),
	}
	return out, nil
}

func (s *Server) handleUpsertItem(ctx context.Context, input *upsertItemInput) (*itemOutput, error) {
	if s.services == nil || s.services.Items == nil {
		return nil, huma.Error503ServiceUnavailable("item service not configured")
	}

	stored, err := s.services.Items.Upsert(ctx, &corpus.Item{
		ID:          input.ID,
		Category:    input.Body.Category,
		Price:       input.Body.Price,
		Description: input.Body.Description,
		Embedding:   input.Body.Embedding,
		Signals:     input.Body.Signals,
	})
	if err != nil {
		return nil, humaError(err)
	}

	return &itemOutput{Body: itemDetailFromItem(stored)}, nil
}

func (s *Server) handleGetItem(ctx context.Context, input *itemIDInput) (*itemOutput, error) {
	if s.services == nil || s.services.Items == nil {
		return nil, huma.Error503ServiceUnavailable("item service not configured")
	}

	item, err := s.services.Items.Get(ctx, input.ID)
	if err != nil {
		return nil, humaError(err)
	}
	return &itemOutput{Body: itemDetailFromItem(item)}, nil
}

func (s *Server) handleDeleteItem(ctx context.Context, input *itemIDInput) (*deleteItemOutput, error) {
	if s.services == nil || s.services.Items == nil {
		return nil, huma.Error503ServiceUnavailable("item service not configured")
	}

	if err := s.services.Items.Delete(ctx, input.ID); err != nil {
		return nil, humaError(err)
	}

	out := &deleteItemOutput{}
	out.Body.Status = "deleted"
	out.Body.ID = input.ID
	return out, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	out := &statusOutput{}
	out.Body = StatusDetail{
		Status:        "ok",
		Version:       s.cfg.Version,
		CorpusBackend: s.cfg.CorpusBackend,
		IndexBackend:  s.cfg.IndexBackend,
	}

	if s.services != nil && s.services.Recommender != nil {
		out.Body.ConfigVersion = s.services.Recommender.Models().Version
	}
	if s.services != nil && s.services.Items != nil {
		n, err := s.services.Items.Count(ctx)
		if err != nil {
			return nil, humaError(err)
		}
		out.Body.Items = n
	}
	if s.services != nil && s.services.Providers != nil {
		statuses := s.services.Providers.Statuses(ctx)
		details := make([]ProviderStatusDetail, len(statuses))
		for i, st := range statuses {
			details[i] = ProviderStatusDetail{
				Provider:  st.Provider,
				Available: st.Available,
				Message:   st.Message,
				Health:    st.Health,
			}
		}
		out.Body.Providers = details
	}
	return out, nil
}

// humaError converts a coded error into a huma status error. The taxonomy
// code rides along as an error detail so clients can branch without parsing
// messages.
func humaError(err error) error {
	detail := &huma.ErrorDetail{
		Location: "code",
		Message:  string(curioerr.CodeOf(err)),
	}
	return huma.NewError(curioerr.HTTPStatus(err), err.Error(), detail)
}
