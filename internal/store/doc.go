// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store opens the databases syncgate persists to and manages their
// schemas with embedded golang-migrate migrations.
package store
