// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strings"
	"unicode"

	"github.com/samber/oops"
)

// CredentialDelimiter separates username and password in a connection token.
const CredentialDelimiter = "-"

// MaxUsernameLength bounds stored usernames in bytes.
const MaxUsernameLength = 64

// User is a stored credential. PasswordHash is opaque to everything but the hasher.
type User struct {
	Username     string
	PasswordHash string
}

// ValidateUsername rejects names that could never be presented in a
// connection token: empty, too long, or containing the token delimiter,
// a comma (the subprotocol list separator) or whitespace.
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d bytes", MaxUsernameLength)
	}
	if strings.Contains(username, CredentialDelimiter) || strings.Contains(username, ",") {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("username", username).
			Errorf("username must not contain %q or \",\"", CredentialDelimiter)
	}
	if strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("username", username).
			Errorf("username must not contain whitespace")
	}
	return nil
}

// CredentialRepository persists username to password hash mappings.
type CredentialRepository interface {
	// Get returns the stored hash, or ErrNotFound.
	Get(ctx context.Context, username string) (string, error)

	// CreateIfAbsent stores hash for username only if no entry exists, as one
	// atomic operation. created reports whether this call wrote the entry.
	CreateIfAbsent(ctx context.Context, username, hash string) (created bool, err error)

	// Delete removes the entry. Deleting an absent username is not an error.
	Delete(ctx context.Context, username string) error
}
