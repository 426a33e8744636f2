// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package openai

import (
	"context"
	"errors"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/curio-dev/curio/internal/provider"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// Config supplies the API key and generation limits for the OpenAI backend.
type Config struct {
	APIKey  string
	BaseURL string // overrides the public endpoint; tests point this at httptest servers

	// MaxOutputTokens caps generated explanations. Zero uses the default.
	MaxOutputTokens int
}

const defaultMaxOutputTokens = 1024

// Provider serves OpenAI embedding and completion models.
type Provider struct {
	client openaisdk.Client
	config Config
	health *provider.HealthTracker
}

var (
	_ provider.EmbedderProvider  = (*Provider)(nil)
	_ provider.GeneratorProvider = (*Provider)(nil)
)

// New constructs the shared SDK client. Only the API key is mandatory.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, curioerr.New(curioerr.CodeProviderRequestInvalid,
			"openai: missing api_key in config", curioerr.FieldProvider("openai"))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	health, err := provider.NewHealthTracker(provider.DefaultHealthCooldown)
	if err != nil {
		return nil, err
	}

	return &Provider{
		client: openaisdk.NewClient(opts...),
		config: cfg,
		health: health,
	}, nil
}

func (p *Provider) Name() string { return "openai" }

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
			ID:             "text-embedding-3-small",
			Name:           "Text Embedding 3 Small",
			Provider:       "openai",
			Kind:           provider.ModelKindEmbedding,
			Dimensions:     1536,
			MaxInputTokens: 8192,
		},
		{
			ID:             "text-embedding-3-large",
			Name:           "Text Embedding 3 Large",
			Provider:       "openai",
			Kind:           provider.ModelKindEmbedding,
			Dimensions:     3072,
			MaxInputTokens: 8192,
		},
		{
			ID:             "text-embedding-ada-002",
			Name:           "Text Embedding Ada 002",
			Provider:       "openai",
			Kind:           provider.ModelKindEmbedding,
			Dimensions:     1536,
			MaxInputTokens: 8192,
		},
		{
			ID:              "gpt-4.1",
			Name:            "GPT-4.1",
			Provider:        "openai",
			Kind:            provider.ModelKindCompletion,
			MaxInputTokens:  128000,
			MaxOutputTokens: 32768,
		},
		{
			ID:              "gpt-4.1-mini",
			Name:            "GPT-4.1 Mini",
			Provider:        "openai",
			Kind:            provider.ModelKindCompletion,
			MaxInputTokens:  128000,
			MaxOutputTokens: 16384,
		},
		{
			ID:              "gpt-4.1-nano",
			Name:            "GPT-4.1 Nano",
			Provider:        "openai",
			Kind:            provider.ModelKindCompletion,
			MaxInputTokens:  128000,
			MaxOutputTokens: 16384,
		},
		{
			ID:              "gpt-4o-mini",
			Name:            "GPT-4o Mini",
			Provider:        "openai",
			Kind:            provider.ModelKindCompletion,
			MaxInputTokens:  128000,
			MaxOutputTokens: 16384,
		},
	}
}

func (p *Provider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return knownModels(), nil
}

func (p *Provider) Status(ctx context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{
		Provider:  "openai",
		Available: p.Available(ctx),
		Message:   "ok",
		Health:    p.health.HealthMetricsPtr(),
	}, nil
}

func (p *Provider) Close() error { return nil }

// Embedder returns a client bound to a known OpenAI embedding model.
func (p *Provider) Embedder(model string) (provider.Embedder, error) {
	dims, ok := embeddingDimensions(model)
	if !ok {
		return nil, curioerr.Errorf(curioerr.CodeProviderInvalidModelRef,
			"openai: unknown embedding model %q", model)
	}
	return &embedder{p: p, model: model, dims: dims}, nil
}

// Generator returns a client bound to an OpenAI completion model. Any
// non-empty model id is accepted; the upstream API rejects unknown ones.
func (p *Provider) Generator(model string) (provider.Generator, error) {
	if model == "" {
		return nil, curioerr.New(curioerr.CodeProviderInvalidModelRef,
			"openai: completion model must not be empty")
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

func (e *embedder) ModelRef() string { return provider.Ref("openai", e.model) }
func (e *embedder) Dimensions() int  { return e.dims }

func (e *embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := provider.ValidateEmbedInput(text); err != nil {
		return nil, err
	}

	resp, err := e.p.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(e.model),
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(text),
		},
	})
	if err != nil {
		if ctx.Err() == nil {
			e.p.health.RecordFailure()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, curioerr.Wrapf(err, curioerr.CodeEmbedTimeout, "openai: embedding %s timed out", e.model)
		}
		return nil, curioerr.Wrapf(err, curioerr.CodeEmbedUpstreamFailure, "openai: embedding request for %s", e.model)
	}
	e.p.health.RecordSuccess()

	if len(resp.Data) == 0 {
		return nil, curioerr.New(curioerr.CodeEmbedResponseInvalid, "openai: embedding response has no data")
	}
	vec := toFloat32(resp.Data[0].Embedding)
	if len(vec) != e.dims {
		return nil, curioerr.Errorf(curioerr.CodeEmbedResponseInvalid,
			"openai: model %s returned %d dimensions, want %d", e.model, len(vec), e.dims)
	}
	return vec, nil
}

// generator is a model-bound view over the shared client.
type generator struct {
	p     *Provider
	model string
}

func (g *generator) ModelRef() string { return provider.Ref("openai", g.model) }

func (g *generator) Complete(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", curioerr.New(curioerr.CodeProviderRequestInvalid, "openai: prompt must not be empty")
	}

	maxTokens := int64(g.p.config.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}

	completion, err := g.p.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(prompt),
		},
		MaxCompletionTokens: param.NewOpt(maxTokens),
	})
	if err != nil {
		if ctx.Err() == nil {
			g.p.health.RecordFailure()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", curioerr.Wrapf(err, curioerr.CodeGenerateTimeout, "openai: completion %s timed out", g.model)
		}
		return "", curioerr.Wrapf(err, curioerr.CodeGenerateUpstreamFailure, "openai: completion request for %s", g.model)
	}
	g.p.health.RecordSuccess()

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", curioerr.New(curioerr.CodeGenerateResponseEmpty, "openai: completion response has no content")
	}
	return completion.Choices[0].Message.Content, nil
}

// toFloat32 narrows the SDK's float64 vectors to the index element type.
func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
