// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package syncpeer is a minimal synchronization core: an append-only update
// log per entity and fan-out of new updates to subscribed connections.
//
// Updates are opaque. Merging them is the clients' concern, so replaying an
// entity's log in order reconstructs its state.
package syncpeer
