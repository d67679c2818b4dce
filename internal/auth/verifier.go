// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// Verifier decides whether a username/password pair may mutate shared state.
// A non-nil error means the decision could not be made.
type Verifier interface {
	Verify(ctx context.Context, username, password string) (bool, error)
}

// VerifierFunc adapts an ordinary function to Verifier.
type VerifierFunc func(ctx context.Context, username, password string) (bool, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, username, password string) (bool, error) {
	return f(ctx, username, password)
}

// DenyAll is a Verifier that never authenticates anyone. It stands in for an
// external identity provider that has not been integrated yet.
type DenyAll struct{}

// Verify always returns false.
func (DenyAll) Verify(context.Context, string, string) (bool, error) {
	return false, nil
}

var (
	_ Verifier = (*CredentialStore)(nil)
	_ Verifier = DenyAll{}
	_ Verifier = VerifierFunc(nil)
)
