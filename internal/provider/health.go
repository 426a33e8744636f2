// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package provider

import (
	"sync"
	"time"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// HealthMetrics is a point-in-time snapshot of one provider's availability,
// surfaced through ProviderStatus and the gateway status endpoint. Pointer
// fields are omitted from JSON until the tracker has seen a failure.
type HealthMetrics struct {
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}

// DefaultHealthCooldown is how long a provider sits out after a failure
// before requests route to it again.
const DefaultHealthCooldown = 30 * time.Second

// HealthTracker tracks per-provider availability as a cooldown deadline.
// A failure pushes the deadline cooldown into the future; the provider reads
// as unhealthy until the deadline passes or a success clears it. Starting
// state is healthy (zero deadline).
type HealthTracker struct {
	mu          sync.RWMutex
	cooldown    time.Duration
	downUntil   time.Time
	lastFailure time.Time
	failures    int64
	now         func() time.Time // for testing
}

// NewHealthTracker builds a tracker in the healthy state. The cooldown must
// be positive; a zero cooldown would make RecordFailure a no-op.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"health tracker needs a positive cooldown, got %s", cooldown)
	}
	return &HealthTracker{cooldown: cooldown, now: time.Now}, nil
}

// IsHealthy reports whether the provider should receive traffic right now.
func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.availableLocked()
}

// availableLocked reports whether the cooldown deadline has passed. The
// deadline is inclusive so a provider recovers exactly when it expires.
// Caller must hold at least h.mu.RLock.
func (h *HealthTracker) availableLocked() bool {
	return h.downUntil.IsZero() || !h.now().Before(h.downUntil)
}

// RecordSuccess clears the cooldown deadline.
func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.downUntil = time.Time{}
	h.mu.Unlock()
}

// RecordFailure pushes the cooldown deadline out from now and bumps the
// lifetime failure count.
func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	t := h.now()
	h.lastFailure = t
	h.downUntil = t.Add(h.cooldown)
	h.failures++
	h.mu.Unlock()
}

// SetNowFunc swaps the clock so tests can walk the deadline directly.
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.now = fn
	h.mu.Unlock()
}

// HealthMetrics returns a point-in-time snapshot of the tracker's state. The
// returned struct holds no references to tracker internals and is safe to
// serialize.
func (h *HealthTracker) HealthMetrics() HealthMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := HealthMetrics{
		FailureCount: h.failures,
		Available:    h.availableLocked(),
	}
	if h.failures > 0 {
		t := h.lastFailure
		m.LastFailureAt = &t
	}
	if !h.downUntil.IsZero() {
		d := h.downUntil
		m.CooldownUntil = &d
	}
	return m
}

// HealthMetricsPtr returns the snapshot as a pointer, for callers that embed
// it in an optional JSON field.
func (h *HealthTracker) HealthMetricsPtr() *HealthMetrics {
	hm := h.HealthMetrics()
	return &hm
}
