// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package wire

import (
	"bytes"

	"github.com/samber/oops"
	"github.com/vmihailenco/msgpack/v5"
)

type authenticateFrame struct {
	Type     string `msgpack:"type"`
	Username string `msgpack:"username"`
	Password string `msgpack:"password"`
}

type updateFrame struct {
	Type     string `msgpack:"type"`
	EntityID string `msgpack:"entityId"`
	Update   []byte `msgpack:"update"`
}

// EncodeAuthenticate encodes an authenticate frame.
func EncodeAuthenticate(username, password string) ([]byte, error) {
	return marshal(authenticateFrame{Type: KindAuthenticate, Username: username, Password: password})
}

// EncodeSendUpdate encodes a sendUpdate frame.
func EncodeSendUpdate(entityID string, update []byte) ([]byte, error) {
	return marshal(updateFrame{Type: KindSendUpdate, EntityID: entityID, Update: update})
}

// EncodeServerUpdate encodes the update frame a peer pushes to subscribers.
func EncodeServerUpdate(entityID string, update []byte) ([]byte, error) {
	return marshal(updateFrame{Type: KindUpdate, EntityID: entityID, Update: update})
}

// EncodePassthrough encodes a frame of any kind from string fields.
func EncodePassthrough(kind string, fields map[string]string) ([]byte, error) {
	m := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		m[k] = v
	}
	m[FieldType] = kind

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(m); err != nil {
		return nil, oops.Code("WIRE_ENCODE_FAILED").With("kind", kind).Wrap(err)
	}
	return buf.Bytes(), nil
}

// Encode encodes msg. A Passthrough with Raw set is returned as is.
func Encode(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case Authenticate:
		return EncodeAuthenticate(m.Username, m.Password)
	case SendUpdate:
		return EncodeSendUpdate(m.EntityID, m.Update)
	case Passthrough:
		if len(m.Raw) > 0 {
			return m.Raw, nil
		}
		fields := m.Fields
		if m.EntityID != "" {
			fields = make(map[string]string, len(m.Fields)+1)
			for k, v := range m.Fields {
				fields[k] = v
			}
			fields[FieldEntityID] = m.EntityID
		}
		return EncodePassthrough(m.Kind, fields)
	default:
		return nil, oops.Code("WIRE_ENCODE_FAILED").Errorf("unsupported message %T", msg)
	}
}

// ServerUpdate is a decoded update frame as seen by a client.
type ServerUpdate struct {
	EntityID string
	Update   []byte
}

// DecodeServerUpdate decodes a frame produced by EncodeServerUpdate.
func DecodeServerUpdate(data []byte) (ServerUpdate, error) {
	var f updateFrame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return ServerUpdate{}, &DecodeError{Reason: ReasonMalformed, Err: err}
	}
	if f.Type != KindUpdate {
		return ServerUpdate{}, &DecodeError{Reason: ReasonUnknownType, Kind: f.Type}
	}
	if f.EntityID == "" {
		return ServerUpdate{}, &DecodeError{Reason: ReasonMissingField, Kind: f.Type, Field: FieldEntityID}
	}
	return ServerUpdate{EntityID: f.EntityID, Update: f.Update}, nil
}

func marshal(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, oops.Code("WIRE_ENCODE_FAILED").Wrap(err)
	}
	return b, nil
}
