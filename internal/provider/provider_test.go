// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package provider_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curio-dev/curio/internal/provider"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

func TestValidateEmbedInput(t *testing.T) {
	t.Run("empty input rejected", func(t *testing.T) {
		err := provider.ValidateEmbedInput("")
		require.Error(t, err)
		assert.True(t, curioerr.HasCode(err, curioerr.CodeEmbedInputInvalid))
		assert.True(t, curioerr.IsEmbedding(err))
		assert.True(t, curioerr.IsInvalidInput(err))
	})

	t.Run("oversized input rejected", func(t *testing.T) {
		err := provider.ValidateEmbedInput(strings.Repeat("a", provider.MaxEmbedInputBytes+1))
		require.Error(t, err)
		assert.True(t, curioerr.HasCode(err, curioerr.CodeEmbedInputTooLong))
		assert.True(t, curioerr.IsInvalidInput(err), "oversized input is a caller error")
	})

	t.Run("normal input accepted", func(t *testing.T) {
		assert.NoError(t, provider.ValidateEmbedInput("running shoes for wet pavement"))
	})

	t.Run("input at the limit accepted", func(t *testing.T) {
		assert.NoError(t, provider.ValidateEmbedInput(strings.Repeat("a", provider.MaxEmbedInputBytes)))
	})
}

func TestRef(t *testing.T) {
	assert.Equal(t, "openai/text-embedding-3-small", provider.Ref("openai", "text-embedding-3-small"))
	assert.Equal(t, "anthropic/claude-haiku-4-5", provider.Ref("anthropic", "claude-haiku-4-5"))
}
