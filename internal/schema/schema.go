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

// Package schema compiles an ordered record schema into a fixed, portable
// byte Layout: per-field offsets, a contiguous status-byte block, an
// aligned slot size, and a stable schema hash used to reject mismatched
// attaches.
package schema

import (
	"fmt"
	"hash/fnv"

	"slices"

	"github.com/fherb2/flexible-shared-memory/internal/typedesc"
)

// Field is one named, typed entry in a record schema, in declaration
// order. Default is carried through for the surface layer's convenience
// (the core layout does not depend on it) since spec.md §6 defines the
// schema tuple as (name, kind_token, default).
type Field struct {
	Name    string
	Token   string
	Default any
}

// Schema is an ordered list of fields. It is the input to Compile.
type Schema []Field

// Validate checks field names are non-empty and unique and that every
// token parses. It does not compute a Layout.
func (s Schema) Validate() error {
	seen := make([]string, 0, len(s))
	for _, f := range s {
		if f.Name == "" {
			return fmt.Errorf("schema: empty field name")
		}
		if slices.Contains(seen, f.Name) {
			return fmt.Errorf("schema: duplicate field name %q", f.Name)
		}
		seen = append(seen, f.Name)
		if _, err := typedesc.Parse(f.Token); err != nil {
			return fmt.Errorf("schema: field %q: %w", f.Name, err)
		}
	}
	return nil
}

// FieldLayout is one field's position within a compiled slot.
type FieldLayout struct {
	Name         string
	Desc         typedesc.Descriptor
	DataOffset   int // byte offset of this field's data within the slot
	DataCapacity int
	StatusOffset int // byte offset within the slot of this field's status byte
}

// Layout is the compiled, deterministic byte layout for a schema. Two
// processes compiling the same Schema produce byte-identical Layouts.
type Layout struct {
	Fields       []FieldLayout
	StatusOffset int // offset of the status block within the slot
	StatusLen    int // number of status bytes == len(Fields)
	DataOffset   int // offset of the first field's data area within the slot
	SlotSize     int // total slot size, padded to a multiple of 8
	SchemaHash   uint64
}

// SlotHeaderSize is the fixed (seq, write_id) header every slot begins
// with, per spec.md §6.
const SlotHeaderSize = 16

// FieldByName returns the FieldLayout for name, or false if absent.
func (l Layout) FieldByName(name string) (FieldLayout, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldLayout{}, false
}

// FieldIndex returns fl's position in the status block, usable as the
// index argument to a slot's per-field status accessors.
func (l Layout) FieldIndex(fl FieldLayout) int {
	return fl.StatusOffset - l.StatusOffset
}

func alignUp(cursor, align int) int {
	if align <= 1 {
		return cursor
	}
	return ((cursor + align - 1) / align) * align
}

// Compile computes the Layout for s. Fields are placed in declaration
// order; each field's data begins at the next offset satisfying its
// natural alignment. The status block is len(s) bytes, 8-byte aligned,
// placed immediately after the slot header and padded to a multiple of 8
// before any field data.
// The final slot size is padded up to a multiple of 8 bytes.
func Compile(s Schema) (Layout, error) {
	if err := s.Validate(); err != nil {
		return Layout{}, err
	}

	statusOffset := alignUp(SlotHeaderSize, 8)
	statusLen := len(s)
	dataStart := alignUp(statusOffset+statusLen, 8)

	fields := make([]FieldLayout, 0, len(s))
	cursor := dataStart
	for i, f := range s {
		desc, err := typedesc.Parse(f.Token)
		if err != nil {
			return Layout{}, fmt.Errorf("schema: field %q: %w", f.Name, err)
		}
		align := desc.Alignment()
		offset := alignUp(cursor, align)
		cap := desc.ByteCapacity()
		fields = append(fields, FieldLayout{
			Name:         f.Name,
			Desc:         desc,
			DataOffset:   offset,
			DataCapacity: cap,
			StatusOffset: statusOffset + i,
		})
		cursor = offset + cap
	}

	slotSize := alignUp(cursor, 8)

	return Layout{
		Fields:       fields,
		StatusOffset: statusOffset,
		StatusLen:    statusLen,
		DataOffset:   dataStart,
		SlotSize:     slotSize,
		SchemaHash:   hashSchema(s),
	}, nil
}

// hashSchema computes a stable 64-bit FNV-1a digest over the ordered
// (name, kind, params) tuples of s. FNV is used (rather than
// hash/maphash, which is seeded randomly per process) because the digest
// must be reproducible across independent processes attaching to the
// same named region.
func hashSchema(s Schema) uint64 {
	h := fnv.New64a()
	for _, f := range s {
		desc, err := typedesc.Parse(f.Token)
		if err != nil {
			// Validate() already rejected unparsable tokens; Compile never
			// reaches here with one.
			continue
		}
		fmt.Fprintf(h, "%s\x00%s\x00", f.Name, desc.Canonical)
	}
	return h.Sum64()
}
