// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package relay serves the WebSocket endpoint. Each upgraded connection gets
// a gate.Session in front of its own sync peer connection.
//
// Clients pass credentials while connecting:
//
//	Sec-WebSocket-Protocol: authorization, <username>-<password>
//
// Connections that fail the check receive HTTP 401 and are never upgraded.
package relay
