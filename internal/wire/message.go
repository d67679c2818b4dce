// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package wire

// Reserved message kinds.
const (
	KindAuthenticate = "authenticate"
	KindSendUpdate   = "sendUpdate"
	KindUpdate       = "update"
)

// Field names used by the reserved kinds.
const (
	FieldType     = "type"
	FieldUsername = "username"
	FieldPassword = "password"
	FieldEntityID = "entityId"
	FieldUpdate   = "update"
)

// Message is one decoded client frame.
//
//sumtype:decl
type Message interface {
	// Type returns the frame's "type" discriminant.
	Type() string
	isMessage()
}

// Authenticate asks the gate to verify a username and password.
type Authenticate struct {
	Username string
	Password string
}

// Type implements Message.
func (Authenticate) Type() string { return KindAuthenticate }
func (Authenticate) isMessage()   {}

// SendUpdate mutates the shared state of one entity.
type SendUpdate struct {
	EntityID string
	Update   []byte
}

// Type implements Message.
func (SendUpdate) Type() string { return KindSendUpdate }
func (SendUpdate) isMessage()   {}

// Passthrough is a sync core message the gate forwards untouched.
type Passthrough struct {
	Kind string
	// EntityID is the "entityId" field when the kind defines one.
	EntityID string
	// Fields holds every required string field of the kind.
	Fields map[string]string
	// Raw is the complete encoded frame.
	Raw []byte
}

// Type implements Message.
func (p Passthrough) Type() string { return p.Kind }
func (Passthrough) isMessage()     {}

// String redacts the password so messages can be logged.
func (a Authenticate) String() string {
	return "authenticate{username=" + a.Username + "}"
}
