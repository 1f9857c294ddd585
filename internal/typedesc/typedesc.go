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

// Package typedesc parses and validates the scalar, string, and array type
// tokens a record schema is built from, and computes the geometry (element
// size, byte capacity, alignment) that the layout compiler needs.
package typedesc

import (
	"fmt"
	"strconv"
	"strings"

	"slices"
)

// Kind identifies the broad shape of a field's type.
type Kind uint8

const (
	KindScalar Kind = iota
	KindString
	KindArray
)

// Scalar identifies one of the three fixed-width scalar types.
type Scalar uint8

const (
	ScalarF64 Scalar = iota
	ScalarI32
	ScalarBool8
)

// scalarSizes gives the fixed byte width of each scalar type.
var scalarSizes = map[Scalar]int{
	ScalarF64:   8,
	ScalarI32:   4,
	ScalarBool8: 1,
}

var scalarNames = map[string]Scalar{
	"f64":   ScalarF64,
	"i32":   ScalarI32,
	"bool8": ScalarBool8,
}

// DType identifies one of the numeric array element types.
type DType uint8

const (
	DTypeF32 DType = iota
	DTypeF64
	DTypeI8
	DTypeI16
	DTypeI32
	DTypeI64
	DTypeU8
	DTypeU16
	DTypeU32
	DTypeU64
	DTypeBool8
)

var dtypeSizes = map[DType]int{
	DTypeF32:   4,
	DTypeF64:   8,
	DTypeI8:    1,
	DTypeI16:   2,
	DTypeI32:   4,
	DTypeI64:   8,
	DTypeU8:    1,
	DTypeU16:   2,
	DTypeU32:   4,
	DTypeU64:   8,
	DTypeBool8: 1,
}

var dtypeNames = map[string]DType{
	"f32":   DTypeF32,
	"f64":   DTypeF64,
	"i8":    DTypeI8,
	"i16":   DTypeI16,
	"i32":   DTypeI32,
	"i64":   DTypeI64,
	"u8":    DTypeU8,
	"u16":   DTypeU16,
	"u32":   DTypeU32,
	"u64":   DTypeU64,
	"bool8": DTypeBool8,
}

// allDTypeNames is the sorted list of dtype names quoted in Parse's
// unknown-dtype error message; membership itself is checked against the
// dtypeNames map.
var allDTypeNames = func() []string {
	names := make([]string, 0, len(dtypeNames))
	for n := range dtypeNames {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}()

// Descriptor is the normalized, validated form of a single field's type
// token. It is a pure function of the token string.
type Descriptor struct {
	Kind Kind

	Scalar Scalar // valid when Kind == KindScalar

	StringChars int // valid when Kind == KindString; character capacity

	DType DType  // valid when Kind == KindArray
	Shape []int  // valid when Kind == KindArray; non-empty, each dim >= 0

	// Canonical is the normalized textual form used as hash input by the
	// layout compiler, e.g. "f64", "str[64]", "u8[480,640,3]".
	Canonical string
}

// ElementSize returns the size in bytes of one scalar/array element, or 4
// for strings (the length-prefix field's own alignment width).
func (d Descriptor) ElementSize() int {
	switch d.Kind {
	case KindScalar:
		return scalarSizes[d.Scalar]
	case KindString:
		return 4
	case KindArray:
		return dtypeSizes[d.DType]
	}
	return 1
}

// Alignment returns the natural alignment of the field's data, which spec.md
// §4.2 defines as equal to ElementSize.
func (d Descriptor) Alignment() int {
	return d.ElementSize()
}

// ByteCapacity returns the fixed on-wire size of the field's data area.
func (d Descriptor) ByteCapacity() int {
	switch d.Kind {
	case KindScalar:
		return scalarSizes[d.Scalar]
	case KindString:
		return 4 + 4*d.StringChars
	case KindArray:
		n := 1
		for _, dim := range d.Shape {
			n *= dim
		}
		return n * dtypeSizes[d.DType]
	}
	return 0
}

// Parse validates and normalizes a type token. Tokens have one of three
// shapes: a bare scalar tag ("f64", "i32", "bool8"), "str[N]" with N a
// non-negative integer character count, or "dtype[d1,d2,...]" with a
// recognized dtype and a non-empty shape.
func Parse(token string) (Descriptor, error) {
	token = strings.TrimSpace(token)

	if scalar, ok := scalarNames[token]; ok {
		return Descriptor{Kind: KindScalar, Scalar: scalar, Canonical: token}, nil
	}

	open := strings.IndexByte(token, '[')
	if open < 0 {
		return Descriptor{}, fmt.Errorf("typedesc: unknown type token %q", token)
	}
	if !strings.HasSuffix(token, "]") {
		return Descriptor{}, fmt.Errorf("typedesc: malformed brackets in token %q", token)
	}
	head := token[:open]
	body := token[open+1 : len(token)-1]

	if head == "str" {
		n, err := strconv.Atoi(body)
		if err != nil {
			return Descriptor{}, fmt.Errorf("typedesc: non-integer string capacity in %q: %w", token, err)
		}
		if n < 0 {
			return Descriptor{}, fmt.Errorf("typedesc: negative string capacity in %q", token)
		}
		return Descriptor{
			Kind:        KindString,
			StringChars: n,
			Canonical:   fmt.Sprintf("str[%d]", n),
		}, nil
	}

	dtype, ok := dtypeNames[head]
	if !ok {
		return Descriptor{}, fmt.Errorf("typedesc: unknown dtype %q in token %q (want one of %v)", head, token, allDTypeNames)
	}
	if body == "" {
		return Descriptor{}, fmt.Errorf("typedesc: empty shape in token %q", token)
	}
	parts := strings.Split(body, ",")
	shape := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		dim, err := strconv.Atoi(p)
		if err != nil {
			return Descriptor{}, fmt.Errorf("typedesc: non-integer dimension %q in token %q: %w", p, token, err)
		}
		if dim < 0 {
			return Descriptor{}, fmt.Errorf("typedesc: negative dimension %d in token %q", dim, token)
		}
		shape = append(shape, dim)
	}

	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	return Descriptor{
		Kind:      KindArray,
		DType:     dtype,
		Shape:     shape,
		Canonical: fmt.Sprintf("%s[%s]", head, strings.Join(dims, ",")),
	}, nil
}

// DTypeSize returns the element size in bytes for a dtype, used by the
// array codec to compute strides without re-deriving them from a
// Descriptor.
func DTypeSize(d DType) int {
	return dtypeSizes[d]
}
