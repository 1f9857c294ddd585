/*
 *
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package shmexchange

import (
	"encoding/binary"
	"math"

	"github.com/fherb2/flexible-shared-memory/internal/codec"
	"github.com/fherb2/flexible-shared-memory/internal/schema"
	"github.com/fherb2/flexible-shared-memory/internal/typedesc"
)

// FieldValue is one field's decoded value plus its status bits, the
// core's own minimal version of the "value + status" wrapper (design
// notes §9 places the polymorphic "magic conversion" wrapper out of
// scope; this is the plain record it decorates).
type FieldValue struct {
	name   string
	status codec.Status
	desc   typedesc.Descriptor
	raw    []byte
}

// Name returns the field's name.
func (f FieldValue) Name() string { return f.name }

// Valid reports whether the field's stored bytes are an exact,
// untruncated copy of the last written value.
func (f FieldValue) Valid() bool { return f.status.Valid() }

// Modified reports whether the field changed in this publication
// relative to the producer's previous finalized slot (ring mode) or
// since the consumer's last reset_modified=true read (single-slot
// mode).
func (f FieldValue) Modified() bool { return f.status.Modified() }

// Truncated reports whether the stored bytes are a prefix of a source
// value that exceeded the field's capacity.
func (f FieldValue) Truncated() bool { return f.status.Truncated() }

// Unwritten reports whether the field has never been written in this
// slot.
func (f FieldValue) Unwritten() bool { return f.status.Unwritten() }

// Float64 decodes an f64 scalar field. It returns 0 if the field is not
// an f64 scalar.
func (f FieldValue) Float64() float64 {
	if f.desc.Kind != typedesc.KindScalar || f.desc.Scalar != typedesc.ScalarF64 {
		return 0
	}
	return math.Float64frombits(binary.NativeEndian.Uint64(f.raw))
}

// Int32 decodes an i32 scalar field. It returns 0 if the field is not an
// i32 scalar.
func (f FieldValue) Int32() int32 {
	if f.desc.Kind != typedesc.KindScalar || f.desc.Scalar != typedesc.ScalarI32 {
		return 0
	}
	return int32(binary.NativeEndian.Uint32(f.raw))
}

// Bool decodes a bool8 scalar field. It returns false if the field is
// not a bool8 scalar.
func (f FieldValue) Bool() bool {
	if f.desc.Kind != typedesc.KindScalar || f.desc.Scalar != typedesc.ScalarBool8 {
		return false
	}
	return f.raw[0] != 0
}

// String decodes a string field. It returns "" if the field is not a
// string.
func (f FieldValue) String() string {
	if f.desc.Kind != typedesc.KindString {
		return ""
	}
	return codec.DecodeString(f.raw, f.desc)
}

// Bytes returns an array field's raw element bytes in row-major order.
// It returns nil if the field is not an array.
func (f FieldValue) Bytes() []byte {
	if f.desc.Kind != typedesc.KindArray {
		return nil
	}
	return codec.DecodeArray(f.raw, f.desc)
}

// DType returns an array field's element dtype.
func (f FieldValue) DType() DType { return f.desc.DType }

// Shape returns an array field's declared shape.
func (f FieldValue) Shape() []int { return f.desc.Shape }

// Snapshot is a reader's private copy of one finalized publication: the
// per-field decoded values with status, plus the publication's write_id
// (design notes §9: "a plain record of tagged values plus a parallel
// array of status bytes").
type Snapshot struct {
	WriteID uint64
	Fields  []FieldValue

	layout schema.Layout
}

// Field returns the named field's value, or false if the schema has no
// field by that name.
func (s *Snapshot) Field(name string) (FieldValue, bool) {
	for _, f := range s.Fields {
		if f.name == name {
			return f, true
		}
	}
	return FieldValue{}, false
}

func decodeSnapshot(layout schema.Layout, data []byte, writeID uint64) *Snapshot {
	fields := make([]FieldValue, len(layout.Fields))
	for i, fl := range layout.Fields {
		st := codec.Status(data[fl.StatusOffset])
		raw := make([]byte, fl.DataCapacity)
		copy(raw, data[fl.DataOffset:fl.DataOffset+fl.DataCapacity])
		fields[i] = FieldValue{name: fl.Name, status: st, desc: fl.Desc, raw: raw}
	}
	return &Snapshot{WriteID: writeID, Fields: fields, layout: layout}
}
