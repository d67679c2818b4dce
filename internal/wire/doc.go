// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package wire decodes and encodes the MessagePack frames exchanged with sync
// clients.
//
// Every frame is a map with a string "type" key. Two kinds are handled by the
// gate itself: "authenticate" carries credentials and "sendUpdate" carries a
// mutation. Every other kind belongs to the sync core and must be registered
// in a Schema before it decodes.
package wire
