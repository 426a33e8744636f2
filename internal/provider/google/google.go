// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package google

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/curio-dev/curio/internal/provider"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// Config supplies the API key and generation limits for the Gemini backend.
type Config struct {
	APIKey string

	// MaxOutputTokens caps generated explanations. Zero uses the default.
	MaxOutputTokens int
}

const defaultMaxOutputTokens = 1024

// Provider serves Google Gemini embedding and completion models.
type Provider struct {
	client *genai.Client
	config Config
	health *provider.HealthTracker
}

var (
	_ provider.EmbedderProvider  = (*Provider)(nil)
	_ provider.GeneratorProvider = (*Provider)(nil)
)

// New constructs the shared Gemini client. Only the API key is mandatory.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, curioerr.New(curioerr.CodeProviderRequestInvalid,
			"google: missing api_key in config", curioerr.FieldProvider("google"))
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, curioerr.Wrapf(err, curioerr.CodeProviderUpstreamFailure, "google: creating client")
	}

	health, err := provider.NewHealthTracker(provider.DefaultHealthCooldown)
	if err != nil {
		return nil, err
	}

	return &Provider{
		client: client,
		config: cfg,
		health: health,
	}, nil
}

func (p *Provider) Name() string { return "google" }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) RecordFailure() { p.health.RecordFailure() }
func (p *Provider) RecordSuccess() { p.health.RecordSuccess() }

// knownModels is the static catalog behind ListModels. The API does not
// report embedding dimensions, so the catalog is maintained by hand.
func knownModels() []provider.ModelInfo {
	return []provider.ModelInfo{
		{
			ID:             "text-embedding-004",
			Name:           "Text Embedding 004",
			Provider:       "google",
			Kind:           provider.ModelKindEmbedding,
			Dimensions:     768,
			MaxInputTokens: 2048,
		},
		{
			ID:             "gemini-embedding-001",
			Name:           "Gemini Embedding 001",
			Provider:       "google",
			Kind:           provider.ModelKindEmbedding,
			Dimensions:     3072,
			MaxInputTokens: 2048,
		},
		{
			ID:              "gemini-2.5-pro",
			Name:            "Gemini 2.5 Pro",
			Provider:        "google",
			Kind:            provider.ModelKindCompletion,
			MaxInputTokens:  1000000,
			MaxOutputTokens: 65536,
		},
		{
			ID:              "gemini-2.5-flash",
			Name:            "Gemini 2.5 Flash",
			Provider:        "google",
			Kind:            provider.ModelKindCompletion,
			MaxInputTokens:  1000000,
			MaxOutputTokens: 65536,
		},
		{
			ID:              "gemini-2.0-flash",
			Name:            "Gemini 2.0 Flash",
			Provider:        "google",
			Kind:            provider.ModelKindCompletion,
			MaxInputTokens:  1000000,
			MaxOutputTokens: 8192,
		},
	}
}

func (p *Provider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return knownModels(), nil
}

func (p *Provider) Status(ctx context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{
		Provider:  "google",
		Available: p.Available(ctx),
		Message:   "ok",
		Health:    p.health.HealthMetricsPtr(),
	}, nil
}

func (p *Provider) Close() error { return nil }

// Embedder returns a client bound to a known Gemini embedding model.
func (p *Provider) Embedder(model string) (provider.Embedder, error) {
	dims, ok := embeddingDimensions(model)
	if !ok {
		return nil, curioerr.Errorf(curioerr.CodeProviderInvalidModelRef,
			"google: unknown embedding model %q", model)
	}
	return &embedder{p: p, model: model, dims: dims}, nil
}

// Generator returns a client bound to a Gemini completion model. Any
// non-empty model id is accepted; the upstream API rejects unknown ones.
func (p *Provider) Generator(model string) (provider.Generator, error) {
	if model == "" {
		return nil, curioerr.New(curioerr.CodeProviderInvalidModelRef,
			"google: completion model must not be empty")
	}
	return &generator{p: p, model: model}, nil
}

// embeddingDimensions returns the vector length of a known embedding model.
func embeddingDimensions(model string) (int, bool) {
	for _, m := range knownModels() {
		if m.ID == model && m.Kind == provider.ModelKindEmbedding {
			return m.Dimensions, true
		}
	}
	return 0, false
}

// embedder is a model-bound view over the shared client.
type embedder struct {
	p     *Provider
	model string
	dims  int
}

func (e *embedder) ModelRef() string { return provider.Ref("google", e.model) }
func (e *embedder) Dimensions() int  { return e.dims }

func (e *embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := provider.ValidateEmbedInput(text); err != nil {
		return nil, err
	}

	resp, err := e.p.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		if ctx.Err() == nil {
			e.p.health.RecordFailure()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, curioerr.Wrapf(err, curioerr.CodeEmbedTimeout, "google: embedding %s timed out", e.model)
		}
		return nil, curioerr.Wrapf(err, curioerr.CodeEmbedUpstreamFailure, "google: embedding request for %s", e.model)
	}
	e.p.health.RecordSuccess()

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, curioerr.New(curioerr.CodeEmbedResponseInvalid, "google: embedding response has no values")
	}
	vec := resp.Embeddings[0].Values
	if len(vec) != e.dims {
		return nil, curioerr.Errorf(curioerr.CodeEmbedResponseInvalid,
			"google: model %s returned %d dimensions, want %d", e.model, len(vec), e.dims)
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, nil
}

// generator is a model-bound view over the shared client.
type generator struct {
	p     *Provider
	model string
}

func (g *generator) ModelRef() string { return provider.Ref("google", g.model) }

func (g *generator) Complete(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", curioerr.New(curioerr.CodeProviderRequestInvalid, "google: prompt must not be empty")
	}

	maxTokens := g.p.config.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}

	resp, err := g.p.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		if ctx.Err() == nil {
			g.p.health.RecordFailure()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", curioerr.Wrapf(err, curioerr.CodeGenerateTimeout, "google: completion %s timed out", g.model)
		}
		return "", curioerr.Wrapf(err, curioerr.CodeGenerateUpstreamFailure, "google: completion request for %s", g.model)
	}
	g.p.health.RecordSuccess()

	text := resp.Text()
	if text == "" {
		return "", curioerr.New(curioerr.CodeGenerateResponseEmpty, "google: completion response has no content")
	}
	return text, nil
}
