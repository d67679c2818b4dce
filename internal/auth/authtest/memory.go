// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package authtest provides in-memory auth fakes for tests.
package authtest

import (
	"context"
	"sync"

	"github.com/holomush/syncgate/internal/auth"
)

// MemoryRepository is an auth.CredentialRepository backed by a map.
// Setting one of the Err fields makes the corresponding method fail.
type MemoryRepository struct {
	mu    sync.Mutex
	users map[string]string

	GetErr    error
	CreateErr error
	DeleteErr error

	gets    int
	creates int
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]string)}
}

// Get implements auth.CredentialRepository.
func (r *MemoryRepository) Get(_ context.Context, username string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.GetErr != nil {
		return "", r.GetErr
	}
	hash, ok := r.users[username]
	if !ok {
		return "", auth.ErrNotFound
	}
	return hash, nil
}

// CreateIfAbsent implements auth.CredentialRepository.
func (r *MemoryRepository) CreateIfAbsent(_ context.Context, username, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.CreateErr != nil {
		return false, r.CreateErr
	}
	if _, ok := r.users[username]; ok {
		return false, nil
	}
	r.users[username] = hash
	return true, nil
}

// Delete implements auth.CredentialRepository.
func (r *MemoryRepository) Delete(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	delete(r.users, username)
	return nil
}

// Hash returns the stored hash for username, if any.
func (r *MemoryRepository) Hash(username string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hash, ok := r.users[username]
	return hash, ok
}

// Len returns the number of stored credentials.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// Gets returns how many times Get was called.
func (r *MemoryRepository) Gets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets
}

// Creates returns how many times CreateIfAbsent was called.
func (r *MemoryRepository) Creates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates
}

// StaticVerifier accepts exactly the pairs it was built with.
type StaticVerifier struct {
	mu    sync.Mutex
	pairs map[string]string
	calls int
	Err   error
}

// NewStaticVerifier builds a verifier from username/password pairs.
func NewStaticVerifier(pairs map[string]string) *StaticVerifier {
	cp := make(map[string]string, len(pairs))
	for u, p := range pairs {
		cp[u] = p
	}
	return &StaticVerifier{pairs: cp}
}

// Verify implements auth.Verifier.
func (v *StaticVerifier) Verify(_ context.Context, username, password string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.Err != nil {
		return false, v.Err
	}
	want, ok := v.pairs[username]
	return ok && want == password, nil
}

// Calls returns how many times Verify was called.
func (v *StaticVerifier) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

var (
	_ auth.CredentialRepository = (*MemoryRepository)(nil)
	_ auth.Verifier             = (*StaticVerifier)(nil)
)
