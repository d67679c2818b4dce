// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate

import "github.com/samber/oops"

// State is a session's authentication state.
type State int32

// Session states.
const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// canTransition reports whether from -> to is allowed. Authentication is
// one-way; only tearing the session down clears it.
func canTransition(from, to State) bool {
	return from == Unauthenticated && to == Authenticated
}

func errInvalidTransition(from, to State) error {
	return oops.Code("GATE_INVALID_TRANSITION").
		With("from", from.String()).
		With("to", to.String()).
		Errorf("cannot move session from %s to %s", from, to)
}
