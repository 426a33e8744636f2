// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package types

import (
	"strings"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// Metric defines the distance metric a vector index is built with.
// It is fixed at index construction time.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
)

// Valid reports whether m is a recognized distance metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricCosine, MetricL2:
		return true
	default:
		return false
	}
}

// ParseMetric parses a case-insensitive string into a Metric.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(s))
	if !m.Valid() {
		return "", curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"invalid distance metric: %q", s)
	}
	return m, nil
}
