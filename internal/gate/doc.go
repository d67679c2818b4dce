// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package gate implements the per-connection authentication state machine.
//
// A Session decodes every inbound frame and decides whether to forward it to
// the sync core, verify it as a credential, or drop it:
//
//	kind           Unauthenticated        Authenticated
//	authenticate   verify, maybe upgrade  ignored
//	sendUpdate     dropped                forwarded
//	passthrough    forwarded              forwarded
//
// Frames are handled one at a time per session, so a sendUpdate that follows
// a successful authenticate always observes the upgraded state.
package gate
