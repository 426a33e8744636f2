// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

// Package provider defines the embedding and generation contracts the
// recommendation pipeline consumes, and the registry that resolves
// "provider/model" references to model-bound clients backed by vendor SDKs.
package provider

import (
	"context"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// MaxEmbedInputBytes bounds embedding input size. Current embedding models
// cap input near 8k tokens; inputs longer than this are rejected before the
// request leaves the process.
const MaxEmbedInputBytes = 32 * 1024

// Embedder maps text to a fixed-length vector using a single pinned model.
// Implementations are safe for concurrent use.
type Embedder interface {
	// Embed returns the embedding for text. Empty or oversized input and
	// upstream failures yield embed.*-coded errors.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the output vector length of the pinned model.
	Dimensions() int

	// ModelRef returns the "provider/model" reference this embedder serves.
	ModelRef() string
}

// Generator produces a single completion for a prompt using a pinned model.
// Implementations are safe for concurrent use.
type Generator interface {
	// Complete returns the completion text. Failures yield generate.*-coded
	// errors; callers decide whether those are fatal.
	Complete(ctx context.Context, prompt string) (string, error)

	// ModelRef returns the "provider/model" reference this generator serves.
	ModelRef() string
}

// Provider is a vendor API client. It mints model-bound embedders and
// generators (see EmbedderProvider and GeneratorProvider) and reports its
// own availability.
type Provider interface {
	// Name returns the registry name, e.g. "openai".
	Name() string

	// Available reports whether the provider is currently usable. A provider
	// in failure cooldown reports false until the cooldown elapses.
	Available(ctx context.Context) bool

	// ListModels returns the models this provider can serve.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Status returns a point-in-time availability snapshot for diagnostics.
	Status(ctx context.Context) (ProviderStatus, error)

	// Close releases underlying resources.
	Close() error
}

// EmbedderProvider is implemented by providers that serve embedding models.
type EmbedderProvider interface {
	Provider

	// Embedder returns a client bound to the given embedding model.
	// Unknown embedding models are rejected: the vector dimensionality
	// must be known up front so the index can be validated against it.
	Embedder(model string) (Embedder, error)
}

// GeneratorProvider is implemented by providers that serve completion models.
type GeneratorProvider interface {
	Provider

	// Generator returns a client bound to the given completion model.
	Generator(model string) (Generator, error)
}

// Router resolves "provider/model" references for the pipeline. An empty ref
// selects the configured default.
type Router interface {
	RouteEmbedder(ctx context.Context, ref string) (Embedder, error)
	RouteGenerator(ctx context.Context, ref string) (Generator, error)
}

// ModelKind distinguishes embedding models from completion models.
type ModelKind string

const (
	ModelKindEmbedding  ModelKind = "embedding"
	ModelKindCompletion ModelKind = "completion"
)

// ModelInfo describes a model a provider can serve.
type ModelInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Provider string    `json:"provider"`
	Kind     ModelKind `json:"kind"`

	// Dimensions is the output vector length. Embedding models only.
	Dimensions int `json:"dimensions,omitempty"`

	// MaxInputTokens is the largest input the model accepts, when known.
	MaxInputTokens int `json:"max_input_tokens,omitempty"`

	// MaxOutputTokens is the completion length cap. Completion models only.
	MaxOutputTokens int `json:"max_output_tokens,omitempty"`
}

// ProviderStatus reports provider availability for the status surfaces.
type ProviderStatus struct {
	Provider  string         `json:"provider"`
	Available bool           `json:"available"`
	Message   string         `json:"message,omitempty"`
	Health    *HealthMetrics `json:"health,omitempty"`
}

// Ref builds a "provider/model" reference.
func Ref(providerName, model string) string {
	return providerName + "/" + model
}

// ValidateEmbedInput rejects embedding input that is empty or exceeds
// MaxEmbedInputBytes. Vendor embedders call this before issuing a request.
func ValidateEmbedInput(text string) error {
	if text == "" {
		return curioerr.New(curioerr.CodeEmbedInputInvalid, "embedding input is empty")
	}
	if len(text) > MaxEmbedInputBytes {
		return curioerr.Errorf(curioerr.CodeEmbedInputTooLong,
			"embedding input is %d bytes, limit is %d", len(text), MaxEmbedInputBytes)
	}
	return nil
}
