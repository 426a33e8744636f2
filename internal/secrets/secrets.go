// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

// Package secrets abstracts secure storage for provider API keys and other
// credentials, backed by the OS keyring by default. Config values may point
// into the store with keyring:// URIs so key material never lives in files.
package secrets

// DefaultService is the keyring service name curio stores its secrets under.
const DefaultService = "curio"

// Store is the contract for secret storage backends. The default backend is
// the OS keyring; tests substitute an in-memory mock.
type Store interface {
	// Store writes value under service/key, overwriting any previous value.
	Store(service, key, value string) error

	// Retrieve returns the value under service/key. Missing entries carry
	// the secret.get.not_found code.
	Retrieve(service, key string) (string, error)

	// Delete removes the entry under service/key. Missing entries carry
	// the secret.get.not_found code.
	Delete(service, key string) error

	// List names every key stored under service, in the order first stored.
	List(service string) ([]string, error)
}
