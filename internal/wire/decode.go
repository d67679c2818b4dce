// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package wire

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Decode decodes one frame against DefaultSchema.
func Decode(data []byte) (Message, error) {
	return DefaultSchema.Decode(data)
}

// Decode decodes one frame. Any error is a *DecodeError.
func (s *Schema) Decode(data []byte) (Message, error) {
	fields, err := decodeMap(data)
	if err != nil {
		return nil, err
	}

	rawType, ok := fields[FieldType]
	if !ok {
		return nil, &DecodeError{Reason: ReasonMissingField, Field: FieldType}
	}
	kind, ok := rawType.(string)
	if !ok || kind == "" {
		return nil, &DecodeError{Reason: ReasonInvalidField, Field: FieldType}
	}

	switch kind {
	case KindAuthenticate:
		// Empty credentials decode; they just never verify.
		username, err := stringField(fields, kind, FieldUsername)
		if err != nil {
			return nil, err
		}
		password, err := stringField(fields, kind, FieldPassword)
		if err != nil {
			return nil, err
		}
		return Authenticate{Username: username, Password: password}, nil

	case KindSendUpdate:
		entityID, err := requireString(fields, kind, FieldEntityID)
		if err != nil {
			return nil, err
		}
		raw, ok := fields[FieldUpdate]
		if !ok {
			return nil, &DecodeError{Reason: ReasonMissingField, Kind: kind, Field: FieldUpdate}
		}
		update, ok := raw.([]byte)
		if !ok {
			return nil, &DecodeError{Reason: ReasonInvalidField, Kind: kind, Field: FieldUpdate}
		}
		return SendUpdate{EntityID: entityID, Update: update}, nil
	}

	required, ok := s.kinds[kind]
	if !ok {
		return nil, &DecodeError{Reason: ReasonUnknownType, Kind: kind}
	}
	msg := Passthrough{
		Kind:   kind,
		Fields: make(map[string]string, len(required)),
		Raw:    bytes.Clone(data),
	}
	for _, field := range required {
		v, err := requireString(fields, kind, field)
		if err != nil {
			return nil, err
		}
		msg.Fields[field] = v
	}
	if v, ok := fields[FieldEntityID].(string); ok {
		msg.EntityID = v
	}
	return msg, nil
}

// stringField returns field, which must be present and a string.
func stringField(fields map[string]any, kind, field string) (string, error) {
	raw, ok := fields[field]
	if !ok {
		return "", &DecodeError{Reason: ReasonMissingField, Kind: kind, Field: field}
	}
	v, ok := raw.(string)
	if !ok {
		return "", &DecodeError{Reason: ReasonInvalidField, Kind: kind, Field: field}
	}
	return v, nil
}

// requireString is stringField for identifiers, which must also be non-empty.
func requireString(fields map[string]any, kind, field string) (string, error) {
	v, err := stringField(fields, kind, field)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", &DecodeError{Reason: ReasonInvalidField, Kind: kind, Field: field}
	}
	return v, nil
}

var errDuplicateKey = errors.New("duplicate key")

// decodeMap reads exactly one top-level map with string keys.
func decodeMap(data []byte) (fields map[string]any, err error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: ReasonMalformed, Err: errors.New("empty frame")}
	}

	defer func() {
		if r := recover(); r != nil {
			fields = nil
			err = &DecodeError{Reason: ReasonMalformed, Err: fmt.Errorf("decoder panic: %v", r)}
		}
	}()

	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)

	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, &DecodeError{Reason: ReasonMalformed, Err: err}
	}
	if n < 0 {
		return nil, &DecodeError{Reason: ReasonMalformed, Err: errors.New("nil map")}
	}

	fields = make(map[string]any, min(n, 16))
	for range n {
		key, err := dec.DecodeString()
		if err != nil {
			return nil, &DecodeError{Reason: ReasonMalformed, Err: err}
		}
		if _, dup := fields[key]; dup {
			return nil, &DecodeError{Reason: ReasonMalformed, Field: key, Err: errDuplicateKey}
		}
		value, err := dec.DecodeInterface()
		if err != nil {
			return nil, &DecodeError{Reason: ReasonMalformed, Field: key, Err: err}
		}
		fields[key] = value
	}

	if r.Len() > 0 {
		return nil, &DecodeError{Reason: ReasonTrailingData, Err: fmt.Errorf("%d bytes after frame", r.Len())}
	}
	return fields, nil
}
