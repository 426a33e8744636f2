// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/curio-dev/curio/internal/config"
	"github.com/curio-dev/curio/internal/corpus"
	_ "github.com/curio-dev/curio/internal/corpus/sqlite" // register sqlite corpus backend
	"github.com/curio-dev/curio/internal/index"
	_ "github.com/curio-dev/curio/internal/index/memory"    // register memory index backend
	_ "github.com/curio-dev/curio/internal/index/sqlitevec" // register sqlite-vec index backend
	"github.com/curio-dev/curio/internal/ingest"
	"github.com/curio-dev/curio/internal/pipeline"
	"github.com/curio-dev/curio/internal/provider"
	anthropicprov "github.com/curio-dev/curio/internal/provider/anthropic"
	googleprov "github.com/curio-dev/curio/internal/provider/google"
	openaiprov "github.com/curio-dev/curio/internal/provider/openai"
	"github.com/curio-dev/curio/internal/secrets"
	"github.com/curio-dev/curio/internal/server"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// Gateway holds all wired subsystems and manages their lifecycle.
type Gateway struct {
	Server   *server.Server
	Corpus   corpus.Store
	Index    index.Index
	Registry *provider.Registry
	Pipeline *pipeline.Pipeline
	Ingestor *ingest.Ingestor
}

// IngestDeps is the subset of the gateway the bulk loader needs: storage,
// providers, and the item write path, without the pipeline or HTTP server.
type IngestDeps struct {
	Corpus   corpus.Store
	Index    index.Index
	Registry *provider.Registry
	Ingestor *ingest.Ingestor
}

// WireIngest opens the corpus and vector index under dataDir, builds the
// provider registry from config, and wires the item write path.
func WireIngest(cfg *config.Config, dataDir string) (*IngestDeps, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, curioerr.Errorf(curioerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	store, err := corpus.Open(cfg.ToCorpusConfig(dataDir))
	if err != nil {
		return nil, curioerr.Errorf(curioerr.CodeCLISetupFailure, "opening corpus store: %w", err)
	}

	idx, err := index.Open(cfg.ToIndexConfig(dataDir))
	if err != nil {
		_ = store.Close()
		return nil, curioerr.Errorf(curioerr.CodeCLISetupFailure, "opening vector index: %w", err)
	}

	reg, err := wireRegistry(cfg)
	if err != nil {
		_ = idx.Close()
		_ = store.Close()
		return nil, err
	}

	return &IngestDeps{
		Corpus:   store,
		Index:    idx,
		Registry: reg,
		Ingestor: ingest.New(reg, cfg.Models.Embedder, store, idx, cfg.Storage.Dimensions, nil),
	}, nil
}

// Close releases the storage and provider resources.
func (d *IngestDeps) Close() error {
	return closeAll(d.Registry, d.Index, d.Corpus)
}

// WireGateway creates all subsystems and wires them together. The dataDir is
// the root directory for the corpus and index databases.
func WireGateway(cfg *config.Config, dataDir string) (*Gateway, error) {
	// 1. Storage, provider registry, and the item write path.
	deps, err := WireIngest(cfg, dataDir)
	if err != nil {
		return nil, err
	}

	// 2. Recommendation pipeline.
	models, err := cfg.ToModelConfig()
	if err != nil {
		_ = deps.Close()
		return nil, curioerr.Errorf(curioerr.CodeCLISetupFailure, "building model config: %w", err)
	}

	pipe, err := pipeline.New(pipeline.Config{
		Models: models,
		Router: deps.Registry,
		Index:  deps.Index,
		Corpus: deps.Corpus,
	})
	if err != nil {
		_ = deps.Close()
		return nil, curioerr.Errorf(curioerr.CodeCLISetupFailure, "building pipeline: %w", err)
	}

	// 3. HTTP server.
	srv, err := server.New(server.Config{
		ListenAddr:     cfg.Server.Listen,
		AuthToken:      cfg.Server.AuthToken,
		CORSOrigins:    cfg.Server.CORSOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		EnableHSTS:     cfg.Server.EnableHSTS,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimitRPS,
			Burst:             cfg.Server.RateLimitBurst,
		},
		Version:       version,
		CorpusBackend: cfg.Storage.CorpusBackend,
		IndexBackend:  cfg.Storage.IndexBackend,
	})
	if err != nil {
		_ = deps.Close()
		return nil, curioerr.Errorf(curioerr.CodeCLISetupFailure, "creating server: %w", err)
	}

	srv.RegisterServices(&server.Services{
		Recommender: pipe,
		Items:       deps.Ingestor,
		Providers:   deps.Registry,
	})
	srv.RegisterConfigDeps(&server.ConfigDeps{
		Secrets:          secrets.NewKeyringStore(),
		ValidateProvider: server.DefaultProviderKeyValidator(&http.Client{Timeout: 10 * time.Second}),
	})

	if cfg.Server.AuthToken == "" {
		slog.Warn("authentication disabled: no auth token configured — all endpoints are unauthenticated")
	}

	return &Gateway{
		Server:   srv,
		Corpus:   deps.Corpus,
		Index:    deps.Index,
		Registry: deps.Registry,
		Pipeline: pipe,
		Ingestor: deps.Ingestor,
	}, nil
}

// wireRegistry builds the provider registry, registers every configured
// provider, and applies the routing defaults from the models section.
func wireRegistry(cfg *config.Config) (*provider.Registry, error) {
	reg := provider.NewRegistry()
	registerBuiltinProviders(cfg, reg)

	// Routing defaults are best effort. On a fresh install the configured
	// refs name providers with no API key yet, so nothing is registered;
	// requests needing them fail with routing errors instead of blocking
	// startup.
	if cfg.Models.Embedder != "" {
		if err := reg.SetDefaultEmbedder(cfg.Models.Embedder); err != nil {
			slog.Warn("default embedder not routable", "ref", cfg.Models.Embedder, "error", err)
		}
	}
	if cfg.Models.Generator != "" {
		if err := reg.SetDefaultGenerator(cfg.Models.Generator); err != nil {
			slog.Warn("default generator not routable", "ref", cfg.Models.Generator, "error", err)
		}
	}
	if len(cfg.Models.Failover) > 0 {
		if err := reg.SetFailover(cfg.Models.Failover); err != nil {
			slog.Warn("failover chain not routable", "error", err)
		}
	}

	return reg, nil
}

// Close releases all resources held by the gateway.
func (gw *Gateway) Close() error {
	return closeAll(gw.Server, gw.Registry, gw.Index, gw.Corpus)
}

type closer interface{ Close() error }

// closeAll closes every closer in order and joins the errors.
func closeAll(closers ...closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// providerFactory builds a provider.Provider from a ProviderConfig.
type providerFactory func(config.ProviderConfig) (provider.Provider, error)

// builtinProviderFactories maps provider names to their constructors.
// Declared as a variable so tests can inject failing factories.
var builtinProviderFactories = map[string]providerFactory{
	"anthropic": func(pc config.ProviderConfig) (provider.Provider, error) {
		return anthropicprov.New(anthropicprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"google": func(pc config.ProviderConfig) (provider.Provider, error) {
		return googleprov.New(googleprov.Config{APIKey: pc.APIKey})
	},
	"openai": func(pc config.ProviderConfig) (provider.Provider, error) {
		return openaiprov.New(openaiprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
}

// registerBuiltinProviders iterates configured providers and registers
// matching built-in implementations. Unknown names or empty API keys are
// logged and skipped — neither is fatal at startup.
func registerBuiltinProviders(cfg *config.Config, reg *provider.Registry) {
	for name, pc := range cfg.Providers {
		if pc.APIKey == "" {
			slog.Warn("skipping provider with empty API key", "provider", name)
			continue
		}
		factory, ok := builtinProviderFactories[name]
		if !ok {
			slog.Warn("unknown provider in config, skipping", "provider", name)
			continue
		}
		p, err := factory(pc)
		if err != nil {
			slog.Warn("failed to create provider", "provider", name, "error", err)
			continue
		}
		reg.Register(name, p)
		slog.Info("registered provider", "provider", name)
	}
}
