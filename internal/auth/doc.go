// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides the credential store backing the sync gate.
//
// # Credential Store
//
// CredentialStore maps usernames to password hashes on top of a
// CredentialRepository backend (sqlite, postgres or redis subpackages):
//   - AddUser - hashes and stores a credential unless the username exists
//   - RemoveUser - deletes a credential, succeeding when it is absent
//   - VerifyUser - checks a username/password pair
//
// Plaintext passwords are never stored. Repositories must implement
// CreateIfAbsent as a single conditional write so concurrent AddUser calls
// for one username cannot both succeed or overwrite each other.
//
// # Verification
//
// Connection handlers depend on the narrow Verifier interface rather than on
// CredentialStore. DenyAll is the placeholder implementation for deployments
// that delegate identity elsewhere.
package auth
