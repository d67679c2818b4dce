// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package wire

import (
	"slices"
	"sort"

	"github.com/samber/oops"
)

// KindSpec declares a passthrough kind and the string fields it requires.
type KindSpec struct {
	Kind     string
	Required []string
}

// Schema is the set of passthrough kinds a decoder accepts besides the
// reserved ones. A Schema is immutable once built.
type Schema struct {
	kinds map[string][]string
}

// DefaultSchema accepts only the reserved kinds.
var DefaultSchema = &Schema{kinds: map[string][]string{}}

// NewSchema builds a Schema. Reserved kinds, empty kinds, duplicates and
// empty field names are rejected.
func NewSchema(specs ...KindSpec) (*Schema, error) {
	kinds := make(map[string][]string, len(specs))
	for _, spec := range specs {
		switch spec.Kind {
		case "":
			return nil, oops.Code("WIRE_SCHEMA_INVALID").Errorf("kind cannot be empty")
		case KindAuthenticate, KindSendUpdate:
			return nil, oops.Code("WIRE_SCHEMA_INVALID").
				With("kind", spec.Kind).
				Errorf("kind %q is reserved", spec.Kind)
		}
		if _, dup := kinds[spec.Kind]; dup {
			return nil, oops.Code("WIRE_SCHEMA_INVALID").
				With("kind", spec.Kind).
				Errorf("kind %q registered twice", spec.Kind)
		}
		for _, field := range spec.Required {
			if field == "" || field == FieldType {
				return nil, oops.Code("WIRE_SCHEMA_INVALID").
					With("kind", spec.Kind).
					Errorf("invalid required field %q", field)
			}
		}
		kinds[spec.Kind] = slices.Clone(spec.Required)
	}
	return &Schema{kinds: kinds}, nil
}

// MustSchema is like NewSchema but panics on error. For package-level vars.
func MustSchema(specs ...KindSpec) *Schema {
	s, err := NewSchema(specs...)
	if err != nil {
		panic(err)
	}
	return s
}

// Kinds returns the registered passthrough kinds in sorted order.
func (s *Schema) Kinds() []string {
	out := make([]string, 0, len(s.kinds))
	for k := range s.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Has reports whether kind is a registered passthrough kind.
func (s *Schema) Has(kind string) bool {
	_, ok := s.kinds[kind]
	return ok
}
