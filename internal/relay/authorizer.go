// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/syncgate/internal/auth"
	"github.com/holomush/syncgate/internal/gate"
	"github.com/holomush/syncgate/pkg/errutil"
)

// Subprotocol is the negotiated WebSocket subprotocol that carries credentials.
const Subprotocol = "authorization"

// Rejection reasons sent in the HTTP response body.
const (
	ReasonUnauthorized = "You are not authorized to connect to this sync server"
	ReasonUnavailable  = "credential store unavailable"
)

// Policy selects how connection credentials relate to in-stream authentication.
type Policy string

// Policies.
const (
	// PolicyToken requires a valid token and starts sessions Authenticated.
	PolicyToken Policy = "token"
	// PolicyStrict requires a valid token and still expects an Authenticate message.
	PolicyStrict Policy = "strict"
	// PolicyMessage accepts every connection; sessions authenticate in-stream.
	PolicyMessage Policy = "message"
)

// ParsePolicy converts a configuration value into a Policy. Empty selects
// PolicyToken.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyToken, nil
	case PolicyToken, PolicyStrict, PolicyMessage:
		return p, nil
	default:
		return "", oops.Code("AUTH_POLICY_INVALID").
			With("policy", s).
			Errorf("unknown auth policy %q", s)
	}
}

// Rejection is returned by Authorize when a connection must not be upgraded.
type Rejection struct {
	Status int
	Reason string
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return r.Reason + ": " + r.Err.Error()
	}
	return r.Reason
}

func (r *Rejection) Unwrap() error { return r.Err }

// ParseToken extracts the credential pair from a Sec-WebSocket-Protocol
// value. The token is split on auth.CredentialDelimiter and only the first
// two parts are used, so a password containing the delimiter is cut short.
func ParseToken(header string) (username, password string, ok bool) {
	parts := strings.Split(header, Subprotocol+",")
	if len(parts) < 2 {
		return "", "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", "", false
	}
	fields := strings.Split(token, auth.CredentialDelimiter)
	username = fields[0]
	if len(fields) > 1 {
		password = fields[1]
	}
	return username, password, true
}

// AuthorizerConfig holds an Authorizer's collaborators.
type AuthorizerConfig struct {
	Verifier auth.Verifier
	// Policy defaults to PolicyToken.
	Policy  Policy
	Logger  *slog.Logger
	Metrics gate.Metrics
}

// Authorizer checks credentials presented while a connection is negotiated.
type Authorizer struct {
	verifier auth.Verifier
	policy   Policy
	logger   *slog.Logger
	metrics  gate.Metrics
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(cfg AuthorizerConfig) (*Authorizer, error) {
	if cfg.Verifier == nil {
		return nil, oops.Code("RELAY_CONFIG_INVALID").Errorf("verifier is required")
	}
	policy, err := ParsePolicy(string(cfg.Policy))
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = gate.NopMetrics{}
	}
	return &Authorizer{
		verifier: cfg.Verifier,
		policy:   policy,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}, nil
}

// Policy returns the active policy.
func (a *Authorizer) Policy() Policy { return a.policy }

// Verifier returns the verifier sessions use for in-stream authentication.
func (a *Authorizer) Verifier() auth.Verifier { return a.verifier }

// Authorize decides whether r may be upgraded and which state its session
// starts in. A *Rejection error carries the HTTP response to send.
func (a *Authorizer) Authorize(ctx context.Context, r *http.Request) (gate.State, error) {
	if a.policy == PolicyMessage {
		return gate.Unauthenticated, nil
	}

	username, password, ok := ParseToken(strings.Join(r.Header.Values("Sec-WebSocket-Protocol"), ", "))
	if !ok {
		a.metrics.AuthAttempt(gate.SourceToken, string(gate.OutcomeRejected))
		a.logger.DebugContext(ctx, "connection rejected: no credential token")
		return gate.Unauthenticated, &Rejection{Status: http.StatusUnauthorized, Reason: ReasonUnauthorized}
	}

	verified, err := a.verifier.Verify(ctx, username, password)
	if err != nil {
		a.metrics.AuthAttempt(gate.SourceToken, string(gate.OutcomeError))
		errutil.LogErrorContext(ctx, a.logger, "credential verification failed", err, "username", username)
		return gate.Unauthenticated, &Rejection{Status: http.StatusServiceUnavailable, Reason: ReasonUnavailable, Err: err}
	}
	if !verified {
		a.metrics.AuthAttempt(gate.SourceToken, string(gate.OutcomeRejected))
		a.logger.InfoContext(ctx, "connection rejected: invalid credentials", "username", username)
		return gate.Unauthenticated, &Rejection{Status: http.StatusUnauthorized, Reason: ReasonUnauthorized}
	}

	a.metrics.AuthAttempt(gate.SourceToken, string(gate.OutcomeVerified))
	if a.policy == PolicyStrict {
		return gate.Unauthenticated, nil
	}
	return gate.Authenticated, nil
}
