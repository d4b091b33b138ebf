package services

import (
	"time"

	"github.com/lucasmontegu/driwet-sub001/internal/types"
)

// RefreshSignal carries the inputs the refresh policy decides on.
type RefreshSignal struct {
	// ServerSuggestedMs is an explicit interval hint. When positive it is
	// honored verbatim and overrides every other signal.
	ServerSuggestedMs int64

	// HasActiveAlerts is true when any hazard alert is active on the route.
	HasActiveAlerts bool

	// HighestRisk is the worst risk level currently observed.
	HighestRisk types.RoadRisk
}

// RefreshPolicy is the adaptive polling schedule: a pure function from the
// current conditions to the wait before the next refresh. It holds no
// state, so the same signal always yields the same interval.
type RefreshPolicy struct {
	// Fast is the interval under active alerts or high risk.
	Fast time.Duration

	// Default is the interval under calm conditions.
	Default time.Duration
}

// NewRefreshPolicy builds a policy with the given cadences.
func NewRefreshPolicy(fast, def time.Duration) RefreshPolicy {
	return RefreshPolicy{Fast: fast, Default: def}
}

// NextInterval returns the wait before the next refresh. An explicit hint
// wins; otherwise active alerts or risk at high or above select the fast
// cadence, and calm conditions the default one.
func (p RefreshPolicy) NextInterval(sig RefreshSignal) time.Duration {
	if sig.ServerSuggestedMs > 0 {
		return time.Duration(sig.ServerSuggestedMs) * time.Millisecond
	}
	if sig.HasActiveAlerts || sig.HighestRisk.Priority() >= types.RiskHigh.Priority() {
		return p.Fast
	}
	return p.Default
}
