// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package provider_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curio-dev/curio/internal/provider"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

func mustTracker(t *testing.T, cooldown time.Duration) *provider.HealthTracker {
	t.Helper()
	h, err := provider.NewHealthTracker(cooldown)
	require.NoError(t, err)
	return h
}

func TestHealthTracker_RejectsNonPositiveCooldown(t *testing.T) {
	for _, cooldown := range []time.Duration{0, -time.Second} {
		_, err := provider.NewHealthTracker(cooldown)
		require.Error(t, err, "cooldown %s", cooldown)
		assert.True(t, curioerr.HasCode(err, curioerr.CodeConfigValidateInvalidValue), "got: %v", err)
	}
}

func TestHealthTracker_Lifecycle(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := mustTracker(t, 30*time.Second)
	h.SetNowFunc(func() time.Time { return clock })

	assert.True(t, h.IsHealthy(), "fresh tracker is available")

	h.RecordFailure()
	assert.False(t, h.IsHealthy())

	h.RecordSuccess()
	assert.True(t, h.IsHealthy(), "success clears the cooldown without waiting it out")
}

func TestHealthTracker_CooldownDeadline(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	h := mustTracker(t, 10*time.Second)
	h.SetNowFunc(func() time.Time { return clock })

	h.RecordFailure()

	steps := []struct {
		at   time.Duration
		want bool
	}{
		{0, false},
		{9 * time.Second, false},
		{10 * time.Second, true}, // the deadline itself counts as recovered
		{11 * time.Second, true},
	}
	for _, step := range steps {
		clock = base.Add(step.at)
		assert.Equal(t, step.want, h.IsHealthy(), "at +%s", step.at)
	}
}

func TestHealthTracker_RepeatedFailurePushesDeadlineOut(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	h := mustTracker(t, 10*time.Second)
	h.SetNowFunc(func() time.Time { return clock })

	h.RecordFailure() // deadline base+10s

	clock = base.Add(8 * time.Second)
	h.RecordFailure() // deadline base+18s

	clock = base.Add(12 * time.Second)
	assert.False(t, h.IsHealthy(), "second failure restarted the cooldown")

	clock = base.Add(18 * time.Second)
	assert.True(t, h.IsHealthy())
}

func TestHealthTracker_Metrics(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	h := mustTracker(t, 10*time.Second)
	h.SetNowFunc(func() time.Time { return clock })

	m := h.HealthMetrics()
	assert.True(t, m.Available)
	assert.Zero(t, m.FailureCount)
	assert.Nil(t, m.LastFailureAt, "no failure yet, field omitted")
	assert.Nil(t, m.CooldownUntil)

	h.RecordFailure()
	clock = base.Add(time.Second)
	h.RecordFailure()

	m = h.HealthMetrics()
	assert.False(t, m.Available)
	assert.Equal(t, int64(2), m.FailureCount)
	require.NotNil(t, m.LastFailureAt)
	assert.Equal(t, base.Add(time.Second), *m.LastFailureAt)
	require.NotNil(t, m.CooldownUntil)
	assert.Equal(t, base.Add(11*time.Second), *m.CooldownUntil)

	h.RecordSuccess()

	m = h.HealthMetrics()
	assert.True(t, m.Available)
	assert.Equal(t, int64(2), m.FailureCount, "count is cumulative across recoveries")
	assert.NotNil(t, m.LastFailureAt, "history survives recovery")
	assert.Nil(t, m.CooldownUntil, "no active cooldown after recovery")
}

func TestHealthTracker_ConcurrentAccess(t *testing.T) {
	h := mustTracker(t, 30*time.Second)

	const writers = 8
	const perWriter = 200

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				h.RecordFailure()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				h.RecordSuccess()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				_ = h.IsHealthy()
				_ = h.HealthMetrics()
			}
		}()
	}
	wg.Wait()

	// Whatever the interleaving, every failure increment must land.
	m := h.HealthMetrics()
	assert.Equal(t, int64(writers*perWriter), m.FailureCount)
}
