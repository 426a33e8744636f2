// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package corpus

import (
	"sync"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// Config controls which backend the corpus factory uses.
type Config struct {
	Backend string // "memory" or "sqlite"; empty defaults to "sqlite".
	Path    string // database file path; unused by the memory backend.
}

// Factory creates a corpus store from its configuration.
type Factory func(cfg Config) (Store, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory function for a named corpus backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg Config) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// Open creates a corpus store for the configured backend.
func Open(cfg Config) (Store, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, curioerr.Errorf(curioerr.CodeCorpusBackendUnsupported, "unsupported corpus backend: %q", backend)
	}

	return factory(cfg)
}
