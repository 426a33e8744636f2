// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package corpus

import "errors"

// Sentinel errors for corpus operations.
// These errors can be checked using errors.Is() for classification.
var (
	// ErrNotFound indicates the requested item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input parameters are invalid or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDatabase indicates a general database error occurred.
	// This is a catch-all for unexpected database failures.
	ErrDatabase = errors.New("database error")
)
