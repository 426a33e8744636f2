// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package pipeline

import (
	"time"

	"github.com/curio-dev/curio/internal/rank"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// Defaults applied by ModelConfig.Validate via DefaultModelConfig.
const (
	// DefaultCandidateMultiplier is the retrieval headroom over the
	// requested K. Retrieving 3-5x the final K leaves room for filtering
	// to discard candidates without starving the result.
	DefaultCandidateMultiplier = 4

	DefaultK = 10
	MaxK     = 100

	DefaultEmbedTimeout    = 10 * time.Second
	DefaultRetrieveTimeout = 5 * time.Second
	DefaultGenerateTimeout = 30 * time.Second
)

// ModelConfig pins everything about model behavior for one deployment
// epoch: which models serve embedding and generation, ranking weights and
// filter vocabulary, retrieval headroom, and per-stage timeouts. It is
// passed into the pipeline explicitly and never read from a global, so a
// version swap is an atomic replace and results stay reproducible against
// a recorded version.
type ModelConfig struct {
	// Version tags every result produced under this configuration.
	Version string `json:"version"`

	// EmbedderRef is a "provider/model" reference, or empty for the
	// router's default embedder. Changing the embedder invalidates the
	// vector index; the index must be rebuilt under the new model.
	EmbedderRef string `json:"embedder_ref,omitempty"`

	// GeneratorRef is a "provider/model" reference, or empty for the
	// router's default generator.
	GeneratorRef string `json:"generator_ref,omitempty"`

	// CandidateMultiplier scales the requested K into the retrieval
	// candidate count. Zero uses DefaultCandidateMultiplier.
	CandidateMultiplier int `json:"candidate_multiplier,omitempty"`

	// DefaultK serves requests that leave K unset; MaxK rejects requests
	// beyond the cost cap. Zero values use the package defaults.
	DefaultK int `json:"default_k,omitempty"`
	MaxK     int `json:"max_k,omitempty"`

	EmbedTimeout    time.Duration `json:"embed_timeout,omitempty"`
	RetrieveTimeout time.Duration `json:"retrieve_timeout,omitempty"`
	GenerateTimeout time.Duration `json:"generate_timeout,omitempty"`

	// Ranking declares scoring weights and the filter vocabulary. Nil uses
	// rank.DefaultConfig.
	Ranking *rank.Config `json:"ranking,omitempty"`
}

// DefaultModelConfig returns the built-in configuration epoch.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Version:             "v1",
		CandidateMultiplier: DefaultCandidateMultiplier,
		DefaultK:            DefaultK,
		MaxK:                MaxK,
		EmbedTimeout:        DefaultEmbedTimeout,
		RetrieveTimeout:     DefaultRetrieveTimeout,
		GenerateTimeout:     DefaultGenerateTimeout,
		Ranking:             rank.DefaultConfig(),
	}
}

// withDefaults fills zero values without touching explicit settings.
func (c ModelConfig) withDefaults() ModelConfig {
	if c.CandidateMultiplier == 0 {
		c.CandidateMultiplier = DefaultCandidateMultiplier
	}
	if c.DefaultK == 0 {
		c.DefaultK = DefaultK
	}
	if c.MaxK == 0 {
		c.MaxK = MaxK
	}
	if c.EmbedTimeout == 0 {
		c.EmbedTimeout = DefaultEmbedTimeout
	}
	if c.RetrieveTimeout == 0 {
		c.RetrieveTimeout = DefaultRetrieveTimeout
	}
	if c.GenerateTimeout == 0 {
		c.GenerateTimeout = DefaultGenerateTimeout
	}
	if c.Ranking == nil {
		c.Ranking = rank.DefaultConfig()
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c ModelConfig) Validate() error {
	if c.Version == "" {
		return curioerr.New(curioerr.CodeConfigValidateInvalidValue, "model config version must not be empty")
	}
	if c.CandidateMultiplier < 1 {
		return curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"candidate_multiplier must be at least 1, got %d", c.CandidateMultiplier)
	}
	if c.DefaultK < 1 {
		return curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"default_k must be at least 1, got %d", c.DefaultK)
	}
	if c.MaxK < c.DefaultK {
		return curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"max_k must be >= default_k, got %d < %d", c.MaxK, c.DefaultK)
	}
	if c.EmbedTimeout <= 0 {
		return curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"embed_timeout must be positive, got %v", c.EmbedTimeout)
	}
	if c.RetrieveTimeout <= 0 {
		return curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"retrieve_timeout must be positive, got %v", c.RetrieveTimeout)
	}
	if c.GenerateTimeout <= 0 {
		return curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"generate_timeout must be positive, got %v", c.GenerateTimeout)
	}
	if c.Ranking != nil {
		if err := c.Ranking.Validate(); err != nil {
			return err
		}
	}
	return nil
}
