// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package sqlite

import (
	"fmt"

	"github.com/curio-dev/curio/internal/corpus"
)

func init() {
	corpus.RegisterBackend("sqlite", func(cfg corpus.Config) (corpus.Store, error) {
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite corpus backend requires a database path")
		}
		return NewItemStore(cfg.Path)
	})
}
