// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package secrets_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/curio-dev/curio/internal/secrets"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

var _ secrets.Store = (*secrets.KeyringStore)(nil)

func init() {
	// Swap in the in-memory keyring so tests never touch the OS keychain.
	keyring.MockInit()
}

// testService derives a service name from the test name so tests sharing the
// mock keyring cannot see each other's entries.
func testService(t *testing.T) string {
	t.Helper()
	return "curio-" + strings.ReplaceAll(strings.ToLower(t.Name()), "/", "-")
}

func TestKeyringStore_RoundTrip(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := testService(t)

	require.NoError(t, ks.Store(svc, "openai-api-key", "sk-live-0001"))

	got, err := ks.Retrieve(svc, "openai-api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-live-0001", got)

	// Overwriting replaces the value without duplicating the index entry.
	require.NoError(t, ks.Store(svc, "openai-api-key", "sk-live-0002"))

	got, err = ks.Retrieve(svc, "openai-api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-live-0002", got)

	keys, err := ks.List(svc)
	require.NoError(t, err)
	assert.Equal(t, []string{"openai-api-key"}, keys)
}

func TestKeyringStore_ListTracksStoresInOrder(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := testService(t)

	keys, err := ks.List(svc)
	require.NoError(t, err)
	assert.Empty(t, keys, "unused service lists nothing")

	require.NoError(t, ks.Store(svc, "openai-api-key", "sk-1"))
	require.NoError(t, ks.Store(svc, "anthropic-api-key", "sk-2"))
	require.NoError(t, ks.Store(svc, "google-api-key", "sk-3"))

	keys, err = ks.List(svc)
	require.NoError(t, err)
	assert.Equal(t, []string{"openai-api-key", "anthropic-api-key", "google-api-key"}, keys,
		"index preserves insertion order")
}

func TestKeyringStore_DeleteRemovesValueAndIndexEntry(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := testService(t)

	require.NoError(t, ks.Store(svc, "openai-api-key", "sk-1"))
	require.NoError(t, ks.Store(svc, "google-api-key", "sk-2"))

	require.NoError(t, ks.Delete(svc, "openai-api-key"))

	_, err := ks.Retrieve(svc, "openai-api-key")
	require.Error(t, err)
	assert.True(t, curioerr.HasCode(err, curioerr.CodeSecretNotFound), "got: %v", err)

	keys, err := ks.List(svc)
	require.NoError(t, err)
	assert.Equal(t, []string{"google-api-key"}, keys)
}

func TestKeyringStore_IndexRemovedWithLastKey(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := testService(t)

	require.NoError(t, ks.Store(svc, "openai-api-key", "sk-1"))
	require.NoError(t, ks.Delete(svc, "openai-api-key"))

	// The index sidecar must not linger once the service holds no secrets.
	_, err := keyring.Get(svc, svc+"::keys-index")
	assert.ErrorIs(t, err, keyring.ErrNotFound)

	keys, err := ks.List(svc)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestKeyringStore_MissingEntries(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := testService(t)

	_, err := ks.Retrieve(svc, "never-stored")
	require.Error(t, err)
	assert.True(t, curioerr.HasCode(err, curioerr.CodeSecretNotFound), "got: %v", err)
	assert.True(t, curioerr.IsNotFound(err))

	err = ks.Delete(svc, "never-stored")
	require.Error(t, err)
	assert.True(t, curioerr.HasCode(err, curioerr.CodeSecretNotFound), "got: %v", err)
}

func TestKeyringStore_RejectsBlankArgs(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := testService(t)

	ops := map[string]func(service, key string) error{
		"store":    func(service, key string) error { return ks.Store(service, key, "v") },
		"retrieve": func(service, key string) error { _, err := ks.Retrieve(service, key); return err },
		"delete":   func(service, key string) error { return ks.Delete(service, key) },
	}

	for name, op := range ops {
		t.Run(name+" empty service", func(t *testing.T) {
			err := op("", "some-key")
			require.Error(t, err)
			assert.True(t, curioerr.HasCode(err, curioerr.CodeSecretInvalidInput), "got: %v", err)
		})
		t.Run(name+" empty key", func(t *testing.T) {
			err := op(svc, "")
			require.Error(t, err)
			assert.True(t, curioerr.HasCode(err, curioerr.CodeSecretInvalidInput), "got: %v", err)
		})
	}

	// An empty value is legal; only service and key are required.
	assert.NoError(t, ks.Store(svc, "empty-ok", ""))
}

func TestKeyringStore_ServicesAreIsolated(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svcA := testService(t) + "-a"
	svcB := testService(t) + "-b"

	require.NoError(t, ks.Store(svcA, "openai-api-key", "from-a"))
	require.NoError(t, ks.Store(svcB, "openai-api-key", "from-b"))

	got, err := ks.Retrieve(svcA, "openai-api-key")
	require.NoError(t, err)
	assert.Equal(t, "from-a", got)

	got, err = ks.Retrieve(svcB, "openai-api-key")
	require.NoError(t, err)
	assert.Equal(t, "from-b", got)

	keysA, err := ks.List(svcA)
	require.NoError(t, err)
	assert.Equal(t, []string{"openai-api-key"}, keysA, "deletes in one service never leak into another")
}
