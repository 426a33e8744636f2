// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	"github.com/zalando/go-keyring"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// keysIndexSuffix is appended to the service name to form the key under which
// the JSON index of stored key names is kept. go-keyring has no enumeration
// API, so List works off this sidecar entry instead.
const keysIndexSuffix = "::keys-index"

// KeyringStore implements Store using the OS keyring via zalando/go-keyring.
// On macOS it uses Keychain, on Linux secret-service (D-Bus), and on Windows
// the Credential Manager.
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

// requireArgs rejects empty service or key names before they reach the
// keyring, where an empty string would silently address a different entry.
func requireArgs(op, service, key string) error {
	if service == "" {
		return curioerr.Errorf(curioerr.CodeSecretInvalidInput, "secret %s: service must not be empty", op)
	}
	if key == "" {
		return curioerr.Errorf(curioerr.CodeSecretInvalidInput, "secret %s: key must not be empty", op)
	}
	return nil
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := requireArgs("store", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return curioerr.Wrapf(err, curioerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}

	return s.mutateIndex(service, func(keys []string) []string {
		if slices.Contains(keys, key) {
			return keys
		}
		return append(keys, key)
	})
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := requireArgs("retrieve", service, key); err != nil {
		return "", err
	}

	val, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", curioerr.Errorf(curioerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return "", curioerr.Wrapf(err, curioerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := requireArgs("delete", service, key); err != nil {
		return err
	}

	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return curioerr.Errorf(curioerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return curioerr.Wrapf(err, curioerr.CodeSecretStoreFailure, "deleting secret %s/%s", service, key)
	}

	return s.mutateIndex(service, func(keys []string) []string {
		return slices.DeleteFunc(keys, func(k string) bool { return k == key })
	})
}

func (s *KeyringStore) List(service string) ([]string, error) {
	return s.loadIndex(service)
}

// loadIndex reads the JSON key index for a service. A missing index means no
// keys have been stored yet.
func (s *KeyringStore) loadIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, service+keysIndexSuffix)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, curioerr.Wrapf(err, curioerr.CodeSecretStoreFailure, "loading key index for service %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, curioerr.Wrapf(err, curioerr.CodeSecretStoreFailure, "decoding key index for service %s", service)
	}
	return keys, nil
}

// mutateIndex loads the key index, applies fn, and writes the result back.
// An index that comes back empty is deleted rather than stored as "[]" so a
// fully cleared service leaves nothing behind in the keyring.
func (s *KeyringStore) mutateIndex(service string, fn func([]string) []string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	keys = fn(keys)

	indexKey := service + keysIndexSuffix
	if len(keys) == 0 {
		if delErr := keyring.Delete(service, indexKey); delErr != nil && !errors.Is(delErr, keyring.ErrNotFound) {
			slog.Debug("failed to clean up empty key index", "service", service, "error", delErr)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return curioerr.Wrapf(err, curioerr.CodeSecretStoreFailure, "encoding key index for service %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return curioerr.Wrapf(err, curioerr.CodeSecretStoreFailure, "saving key index for service %s", service)
	}
	return nil
}
