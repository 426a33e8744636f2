// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package provider_test

import (
	"context"

	"github.com/curio-dev/curio/internal/provider"
)

// mockProvider is a reusable base implementation of provider.Provider for
// registry tests. Embed it and add role methods to build embedder or
// generator mocks.
type mockProvider struct {
	name      string
	available bool
	closeErr  error
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Available(_ context.Context) bool { return m.available }

func (m *mockProvider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return nil, nil
}

func (m *mockProvider) Status(ctx context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{
		Provider:  m.name,
		Available: m.Available(ctx),
		Message:   "ok",
	}, nil
}

func (m *mockProvider) Close() error { return m.closeErr }

// mockEmbedderProvider serves embedding models of a fixed dimensionality.
type mockEmbedderProvider struct {
	mockProvider
	dims int
}

func (m *mockEmbedderProvider) Embedder(model string) (provider.Embedder, error) {
	return &mockEmbedder{ref: provider.Ref(m.name, model), dims: m.dims}, nil
}

type mockEmbedder struct {
	ref  string
	dims int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, m.dims)
	for i := range vec {
		vec[i] = float32(len(text) % 7)
	}
	return vec, nil
}

func (m *mockEmbedder) Dimensions() int  { return m.dims }
func (m *mockEmbedder) ModelRef() string { return m.ref }

// mockGeneratorProvider serves completion models that echo the prompt.
type mockGeneratorProvider struct {
	mockProvider
}

func (m *mockGeneratorProvider) Generator(model string) (provider.Generator, error) {
	return &mockGenerator{ref: provider.Ref(m.name, model)}, nil
}

type mockGenerator struct {
	ref string
}

func (m *mockGenerator) Complete(_ context.Context, prompt string) (string, error) {
	return "echo: " + prompt, nil
}

func (m *mockGenerator) ModelRef() string { return m.ref }
