// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay

import "github.com/holomush/syncgate/internal/gate"

// Connection results reported to Metrics.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics receives relay and session counters.
type Metrics interface {
	gate.Metrics
	ConnectionHandled(result string)
}

// NopMetrics discards everything.
type NopMetrics struct{ gate.NopMetrics }

// ConnectionHandled does nothing.
func (NopMetrics) ConnectionHandled(string) {}
