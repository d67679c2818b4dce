// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate

// Outcome is what Handle did with one frame.
type Outcome string

// Handle outcomes.
const (
	OutcomeForwarded Outcome = "forwarded"
	OutcomeDropped   Outcome = "dropped"
	OutcomeVerified  Outcome = "verified"
	OutcomeRejected  Outcome = "rejected"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeError     Outcome = "error"
	OutcomeClosed    Outcome = "closed"
)

// Message kinds as reported to Metrics.
const (
	KindAuthenticate = "authenticate"
	KindSendUpdate   = "send_update"
	KindPassthrough  = "passthrough"
	KindInvalid      = "invalid"
)

// Sources of authentication attempts.
const (
	SourceMessage = "message"
	SourceToken   = "token"
)

// Metrics receives counters from sessions. Implementations must be safe for
// concurrent use.
type Metrics interface {
	MessageHandled(kind string, outcome Outcome)
	AuthAttempt(source, result string)
	SessionOpened()
	SessionClosed()
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) MessageHandled(string, Outcome) {}
func (NopMetrics) AuthAttempt(string, string)     {}
func (NopMetrics) SessionOpened()                 {}
func (NopMetrics) SessionClosed()                 {}
