// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package wire

import "fmt"

// Reason classifies a DecodeError.
type Reason string

// Decode failure reasons.
const (
	ReasonMalformed    Reason = "malformed"
	ReasonUnknownType  Reason = "unknown_type"
	ReasonMissingField Reason = "missing_field"
	ReasonInvalidField Reason = "invalid_field"
	ReasonTrailingData Reason = "trailing_data"
)

// DecodeError reports a frame that is not a complete, recognized message.
type DecodeError struct {
	Reason Reason
	// Kind is the frame's type, when it could be read.
	Kind string
	// Field names the offending field for missing_field and invalid_field.
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	msg := "wire: " + string(e.Reason)
	if e.Kind != "" {
		msg += fmt.Sprintf(" (type %q)", e.Kind)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" field %q", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }
