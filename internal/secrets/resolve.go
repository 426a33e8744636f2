// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package secrets

import (
	"strings"

	"github.com/spf13/viper"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

const keyringScheme = "keyring://"

// URI builds the keyring://service/key form under which config files
// reference a stored secret.
func URI(service, key string) string {
	return keyringScheme + service + "/" + key
}

// IsKeyringURI reports whether value uses the keyring:// URI scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringURI extracts service and key from a keyring://service/key URI.
func ParseKeyringURI(uri string) (service, key string, err error) {
	rest, ok := strings.CutPrefix(uri, keyringScheme)
	if !ok {
		return "", "", curioerr.Errorf(curioerr.CodeSecretURIInvalid, "not a keyring URI: %q", uri)
	}

	service, key, found := strings.Cut(rest, "/")
	if !found || service == "" || key == "" {
		return "", "", curioerr.Errorf(curioerr.CodeSecretURIInvalid,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// ResolveKeyringURI resolves a single keyring:// URI to its secret value.
// Returns the original value unchanged if it is not a keyring URI.
func ResolveKeyringURI(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}

	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", curioerr.Wrapf(err, curioerr.CodeSecretResolveFailure,
			"resolving keyring URI %q", value)
	}
	return secret, nil
}

// ResolveViperSecrets walks all keys in a Viper instance and resolves any
// string values that use the keyring:// URI scheme. This is a post-load
// resolution step, not a Viper decoder hook.
//
// Every unresolvable URI is reported, so an operator fixing a broken config
// sees all problems at once rather than one per run.
func ResolveViperSecrets(v *viper.Viper, store Store) error {
	var errs []error
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsKeyringURI(val) {
			continue
		}

		resolved, err := ResolveKeyringURI(store, val)
		if err != nil {
			errs = append(errs, curioerr.Wrapf(err, curioerr.CodeSecretResolveFailure,
				"config key %s: unresolved secret %q", key, val))
			continue
		}

		v.Set(key, resolved)
	}

	if len(errs) > 0 {
		return curioerr.Join(errs...)
	}
	return nil
}
