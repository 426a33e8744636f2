// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package provider

import (
	"context"
	"sort"
	"strings"
	"sync"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// Registry manages provider registration, lookup, and routing. It implements
// the Router interface.
//
// Embedder refs never fail over: the vector index is built in one embedding
// space, and silently switching models would make every stored vector
// incomparable to new queries. Generator refs may fail over, because any
// capable model can write an explanation.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider

	defaultEmbedder  string   // "provider/model" format
	defaultGenerator string   // "provider/model" format
	failover         []string // ordered generator fallback refs
}

// Compile-time check that Registry implements Router.
var _ Router = (*Registry)(nil)

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry, replacing any provider already
// registered under the same name.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, curioerr.New(
			curioerr.CodeProviderNotFound,
			"provider not found: "+name,
			curioerr.FieldProvider(name),
		)
	}
	return p, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetDefaultEmbedder sets the "provider/model" reference used when an
// embedder is requested with an empty ref. The provider portion must be
// registered and must serve embedding models.
func (r *Registry) SetDefaultEmbedder(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.embedderProviderLocked(ref); err != nil {
		return err
	}
	r.defaultEmbedder = ref
	return nil
}

// SetDefaultGenerator sets the "provider/model" reference used when a
// generator is requested with an empty ref. The provider portion must be
// registered and must serve completion models.
func (r *Registry) SetDefaultGenerator(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.generatorProviderLocked(ref); err != nil {
		return err
	}
	r.defaultGenerator = ref
	return nil
}

// SetFailover sets the ordered generator fallback chain. Every ref's
// provider must be registered and must serve completion models.
func (r *Registry) SetFailover(chain []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range chain {
		if _, err := r.generatorProviderLocked(ref); err != nil {
			return err
		}
	}
	r.failover = append([]string(nil), chain...)
	return nil
}

// RouteEmbedder resolves ref to a model-bound embedder. An empty ref (or
// "default") selects the configured default. The resolved provider must be
// available: there is no embedder failover, so an unavailable provider fails
// the call immediately.
func (r *Registry) RouteEmbedder(ctx context.Context, ref string) (Embedder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, err := resolveRef(ref, r.defaultEmbedder)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		return nil, curioerr.New(curioerr.CodeProviderNoDefault, "no default embedder configured")
	}

	ep, err := r.embedderProviderLocked(ref)
	if err != nil {
		return nil, err
	}
	if !ep.Available(ctx) {
		return nil, curioerr.New(
			curioerr.CodeProviderUpstreamFailure,
			"provider unavailable: "+ep.Name(),
			curioerr.FieldProvider(ep.Name()),
		)
	}

	_, model := parseRef(ref)
	return ep.Embedder(model)
}

// RouteGenerator resolves ref to a model-bound generator. An empty ref (or
// "default") selects the configured default. When the primary ref cannot be
// served the failover chain is walked in order; refs whose provider is
// unknown or unavailable are skipped.
func (r *Registry) RouteGenerator(ctx context.Context, ref string) (Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, err := resolveRef(ref, r.defaultGenerator)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		return nil, curioerr.New(curioerr.CodeProviderNoDefault, "no default generator configured")
	}

	if g, err := r.tryGeneratorLocked(ctx, ref); err == nil {
		return g, nil
	}

	for _, fallback := range r.failover {
		if fallback == ref {
			continue
		}
		if g, err := r.tryGeneratorLocked(ctx, fallback); err == nil {
			return g, nil
		}
	}

	return nil, curioerr.New(
		curioerr.CodeProviderAllUnavailable,
		"all generators unavailable: no healthy provider found",
	)
}

// Statuses collects a status snapshot from every registered provider,
// ordered by provider name.
func (r *Registry) Statuses(ctx context.Context) []ProviderStatus {
	r.mu.RLock()
	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	r.mu.RUnlock()

	statuses := make([]ProviderStatus, 0, len(providers))
	for _, p := range providers {
		st, err := p.Status(ctx)
		if err != nil {
			st = ProviderStatus{Provider: p.Name(), Available: false, Message: err.Error()}
		}
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Provider < statuses[j].Provider })
	return statuses
}

// Close shuts down all registered providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return curioerr.Join(errs...)
	}
	return nil
}

// embedderProviderLocked validates ref and returns its provider as an
// EmbedderProvider. Caller must hold r.mu (at least RLock).
func (r *Registry) embedderProviderLocked(ref string) (EmbedderProvider, error) {
	p, err := r.providerLocked(ref)
	if err != nil {
		return nil, err
	}

	ep, ok := p.(EmbedderProvider)
	if !ok {
		return nil, curioerr.New(
			curioerr.CodeProviderInvalidModelRef,
			"provider serves no embedding models: "+p.Name(),
			curioerr.FieldProvider(p.Name()),
		)
	}
	return ep, nil
}

// generatorProviderLocked validates ref and returns its provider as a
// GeneratorProvider. Caller must hold r.mu (at least RLock).
func (r *Registry) generatorProviderLocked(ref string) (GeneratorProvider, error) {
	p, err := r.providerLocked(ref)
	if err != nil {
		return nil, err
	}

	gp, ok := p.(GeneratorProvider)
	if !ok {
		return nil, curioerr.New(
			curioerr.CodeProviderInvalidModelRef,
			"provider serves no completion models: "+p.Name(),
			curioerr.FieldProvider(p.Name()),
		)
	}
	return gp, nil
}

// providerLocked looks up the provider portion of ref.
// Caller must hold r.mu (at least RLock).
func (r *Registry) providerLocked(ref string) (Provider, error) {
	provName, _ := parseRef(ref)
	p, ok := r.providers[provName]
	if !ok {
		return nil, curioerr.New(
			curioerr.CodeProviderNotFound,
			"provider not found: "+provName,
			curioerr.FieldProvider(provName),
		)
	}
	return p, nil
}

// tryGeneratorLocked resolves one generator ref, requiring an available
// provider. Caller must hold r.mu (at least RLock).
func (r *Registry) tryGeneratorLocked(ctx context.Context, ref string) (Generator, error) {
	gp, err := r.generatorProviderLocked(ref)
	if err != nil {
		return nil, err
	}

	if !gp.Available(ctx) {
		return nil, curioerr.New(
			curioerr.CodeProviderUpstreamFailure,
			"provider unavailable: "+gp.Name(),
			curioerr.FieldProvider(gp.Name()),
		)
	}

	_, model := parseRef(ref)
	return gp.Generator(model)
}

// resolveRef normalizes an explicit ref against a configured default.
// Explicit refs must use the "provider/model" format.
func resolveRef(ref, fallback string) (string, error) {
	if ref != "" && ref != "default" {
		if !strings.Contains(ref, "/") {
			return "", curioerr.Errorf(
				curioerr.CodeProviderInvalidModelRef,
				"model ref %q must use provider/model format", ref,
			)
		}
		return ref, nil
	}
	return fallback, nil
}

// parseRef splits a "provider/model" reference on the first "/".
func parseRef(ref string) (providerName, model string) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}
