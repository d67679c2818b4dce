// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// CredentialStore creates, removes and verifies username/password credentials.
// It is safe for concurrent use when its repository is.
type CredentialStore struct {
	repo   CredentialRepository
	hasher PasswordHasher
	logger *slog.Logger
}

// NewCredentialStore creates a CredentialStore with a no-op logger.
// Returns an error if any required dependency is nil.
func NewCredentialStore(repo CredentialRepository, hasher PasswordHasher) (*CredentialStore, error) {
	return NewCredentialStoreWithLogger(repo, hasher, slog.New(slog.DiscardHandler))
}

// NewCredentialStoreWithLogger creates a CredentialStore with the provided logger.
// Returns an error if any required dependency is nil.
func NewCredentialStoreWithLogger(repo CredentialRepository, hasher PasswordHasher, logger *slog.Logger) (*CredentialStore, error) {
	if repo == nil {
		return nil, oops.Errorf("credential repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &CredentialStore{
		repo:   repo,
		hasher: hasher,
		logger: logger,
	}, nil
}

// AddUser stores a credential for username unless one already exists.
// An existing credential is kept as is and created is false; this is not an error.
func (s *CredentialStore) AddUser(ctx context.Context, username, password string) (created bool, err error) {
	if err := ValidateUsername(username); err != nil {
		return false, err
	}
	if password == "" {
		return false, ErrEmptyPassword
	}

	_, err = s.repo.Get(ctx, username)
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "user already exists, keeping existing credential", "username", username)
		return false, nil
	case !errors.Is(err, ErrNotFound):
		return false, oops.Code("CREDENTIALS_STORE_FAILED").
			With("operation", "get credential").
			With("username", username).
			Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, oops.Code("CREDENTIALS_HASH_FAILED").
			With("operation", "hash password").
			With("username", username).
			Wrap(err)
	}

	created, err = s.repo.CreateIfAbsent(ctx, username, hash)
	if err != nil {
		return false, oops.Code("CREDENTIALS_STORE_FAILED").
			With("operation", "create credential").
			With("username", username).
			Wrap(err)
	}
	if !created {
		// Another caller won the race between Get and CreateIfAbsent.
		s.logger.InfoContext(ctx, "user already exists, keeping existing credential", "username", username)
		return false, nil
	}

	s.logger.InfoContext(ctx, "user created", "username", username)
	return true, nil
}

// RemoveUser deletes the credential for username. Removing an unknown user succeeds.
func (s *CredentialStore) RemoveUser(ctx context.Context, username string) error {
	if err := s.repo.Delete(ctx, username); err != nil {
		return oops.Code("CREDENTIALS_STORE_FAILED").
			With("operation", "delete credential").
			With("username", username).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "user removed", "username", username)
	return nil
}

// VerifyUser reports whether password matches the stored credential. The
// stored hash's format picks the algorithm, so credentials created before a
// hasher change keep verifying.
// Unknown usernames are checked against a dummy hash so that they cost the
// same hash comparison as a wrong password, and then report false.
func (s *CredentialStore) VerifyUser(ctx context.Context, username, password string) (bool, error) {
	hash, err := s.repo.Get(ctx, username)
	exists := true
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return false, oops.Code("CREDENTIALS_STORE_FAILED").
				With("operation", "get credential").
				With("username", username).
				Wrap(err)
		}
		hash = s.hasher.DummyHash()
		exists = false
	}

	verifier := s.hasher
	if exists {
		verifier = hasherForHash(hash, s.hasher)
	}
	valid, err := verifier.Verify(password, hash)
	if err != nil {
		if !exists {
			return false, nil
		}
		return false, oops.Code("CREDENTIALS_HASH_FAILED").
			With("operation", "verify password").
			With("username", username).
			Wrap(err)
	}

	return exists && valid, nil
}

// Verify implements Verifier.
func (s *CredentialStore) Verify(ctx context.Context, username, password string) (bool, error) {
	return s.VerifyUser(ctx, username, password)
}
