// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

// Package anthropic serves Anthropic completion models. Anthropic exposes no
// embedding API, so this provider is generation-only.
package anthropic

import (
	"context"
	"errors"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/curio-dev/curio/internal/provider"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// Config supplies the API key and generation limits for the Anthropic backend.
type Config struct {
	APIKey  string
	BaseURL string // overrides the public endpoint; tests point this at httptest servers

	// MaxOutputTokens caps generated explanations. Zero uses the default.
	MaxOutputTokens int
}

const defaultMaxOutputTokens = 1024

// Provider serves Anthropic completion models.
type Provider struct {
	client anthropicsdk.Client
	config Config
	health *provider.HealthTracker
}

var _ provider.GeneratorProvider = (*Provider)(nil)

// New constructs the shared SDK client. Only the API key is mandatory.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, curioerr.New(curioerr.CodeProviderRequestInvalid,
			"anthropic: missing api_key in config", curioerr.FieldProvider("anthropic"))
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
		client: anthropicsdk.NewClient(opts...),
		config: cfg,
		health: health,
	}, nil
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) RecordFailure() { p.health.RecordFailure() }
func (p *Provider) RecordSuccess() { p.health.RecordSuccess() }

// knownModels is the static catalog behind ListModels.
func knownModels() []provider.ModelInfo {
	return []provider.ModelInfo{
		{
			ID:              "claude-opus-4-6",
			Name:            "Claude Opus 4.6",
			Provider:        "anthropic",
			Kind:            provider.ModelKindCompletion,
			MaxInputTokens:  200000,
			MaxOutputTokens: 32000,
		},
		{
			ID:              "claude-sonnet-4-5",
			Name:            "Claude Sonnet 4.5",
			Provider:        "anthropic",
			Kind:            provider.ModelKindCompletion,
			MaxInputTokens:  200000,
			MaxOutputTokens: 16000,
		},
		{
			ID:              "claude-haiku-4-5",
			Name:            "Claude Haiku 4.5",
			Provider:        "anthropic",
			Kind:            provider.ModelKindCompletion,
			MaxInputTokens:  200000,
			MaxOutputTokens: 8192,
		},
	}
}

func (p *Provider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return knownModels(), nil
}

func (p *Provider) Status(ctx context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{
		Provider:  "anthropic",
		Available: p.Available(ctx),
		Message:   "ok",
		Health:    p.health.HealthMetricsPtr(),
	}, nil
}

func (p *Provider) Close() error { return nil }

// Generator returns a client bound to an Anthropic completion model. Any
// non-empty model id is accepted; the upstream API rejects unknown ones.
func (p *Provider) Generator(model string) (provider.Generator, error) {
	if model == "" {
		return nil, curioerr.New(curioerr.CodeProviderInvalidModelRef,
			"anthropic: completion model must not be empty")
	}
	return &generator{p: p, model: model}, nil
}

// generator is a model-bound view over the shared client.
type generator struct {
	p     *Provider
	model string
}

func (g *generator) ModelRef() string { return provider.Ref("anthropic", g.model) }

func (g *generator) Complete(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", curioerr.New(curioerr.CodeProviderRequestInvalid, "anthropic: prompt must not be empty")
	}

	maxTokens := int64(g.p.config.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}

	msg, err := g.p.client.Messages.New(ctx, anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(g.model),
		MaxTokens: maxTokens,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		if ctx.Err() == nil {
			g.p.health.RecordFailure()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", curioerr.Wrapf(err, curioerr.CodeGenerateTimeout, "anthropic: completion %s timed out", g.model)
		}
		return "", curioerr.Wrapf(err, curioerr.CodeGenerateUpstreamFailure, "anthropic: completion request for %s", g.model)
	}
	g.p.health.RecordSuccess()

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", curioerr.New(curioerr.CodeGenerateResponseEmpty, "anthropic: completion response has no content")
	}
	return sb.String(), nil
}
