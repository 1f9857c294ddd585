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

// Package codec encodes and decodes scalar, string, and array field values
// to and from fixed byte offsets inside a slot's data area, enforcing the
// truncation policy from spec.md §4.3 and maintaining the per-field status
// byte.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"slices"

	"github.com/fherb2/flexible-shared-memory/internal/typedesc"
)

// ErrKindMismatch is returned when a value's Go type does not match the
// field's declared kind.
var ErrKindMismatch = errors.New("codec: value kind mismatch")

// ErrShapeMismatch is returned when an array value's shape has a
// different number of dimensions than the field's declared shape. This
// is a structural argument error, distinct from a same-rank size
// mismatch (fewer/more elements along the declared dimensions), which is
// reflected as TRUNCATED status per spec.md §4.3 rather than raised.
var ErrShapeMismatch = errors.New("codec: array shape rank mismatch")

// Status holds the four per-field flags from spec.md §3. Exactly one of
// {Unwritten, Truncated, Valid} holds at any stable read; Modified may
// co-occur with Valid or Truncated but never with Unwritten.
type Status uint8

const (
	StatusValid     Status = 1 << 0
	StatusModified  Status = 1 << 1
	StatusTruncated Status = 1 << 2
	StatusUnwritten Status = 1 << 3
)

func (s Status) Valid() bool     { return s&StatusValid != 0 }
func (s Status) Modified() bool  { return s&StatusModified != 0 }
func (s Status) Truncated() bool { return s&StatusTruncated != 0 }
func (s Status) Unwritten() bool { return s&StatusUnwritten != 0 }

// WithModified returns s with the modified bit set or cleared.
func (s Status) WithModified(on bool) Status {
	if on {
		return s | StatusModified
	}
	return s &^ StatusModified
}

// ArrayValue is the codec's representation of an array field's source
// value: a declared dtype/shape plus the native-endian bytes of its
// elements in row-major order. The Exchange surface builds one of these
// from a typed Go slice before calling EncodeArray.
type ArrayValue struct {
	DType typedesc.DType
	Shape []int
	Data  []byte
}

// EncodeScalar writes value's native-endian bytes to dst (which must be at
// least desc.ByteCapacity() long) and returns the resulting status.
func EncodeScalar(dst []byte, desc typedesc.Descriptor, value any) (Status, error) {
	switch desc.Scalar {
	case typedesc.ScalarF64:
		v, ok := value.(float64)
		if !ok {
			return 0, fmt.Errorf("%w: want float64, got %T", ErrKindMismatch, value)
		}
		binary.NativeEndian.PutUint64(dst, math.Float64bits(v))
	case typedesc.ScalarI32:
		v, ok := value.(int32)
		if !ok {
			return 0, fmt.Errorf("%w: want int32, got %T", ErrKindMismatch, value)
		}
		binary.NativeEndian.PutUint32(dst, uint32(v))
	case typedesc.ScalarBool8:
		v, ok := value.(bool)
		if !ok {
			return 0, fmt.Errorf("%w: want bool, got %T", ErrKindMismatch, value)
		}
		if v {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	}
	return StatusValid | StatusModified, nil
}

// DecodeScalar reads a scalar value out of src.
func DecodeScalar(src []byte, desc typedesc.Descriptor) any {
	switch desc.Scalar {
	case typedesc.ScalarF64:
		return math.Float64frombits(binary.NativeEndian.Uint64(src))
	case typedesc.ScalarI32:
		return int32(binary.NativeEndian.Uint32(src))
	case typedesc.ScalarBool8:
		return src[0] != 0
	}
	return nil
}

// EncodeString writes value as a u32 length prefix followed by its UTF-8
// bytes. If the encoded length fits within 4*C_chars bytes and the
// character count fits within C_chars, the full string is written and the
// field is Valid. Otherwise the longest prefix that satisfies both limits
// is written (never splitting a code point) and the field is Truncated,
// never Valid.
func EncodeString(dst []byte, desc typedesc.Descriptor, value string) Status {
	maxBytes := 4 * desc.StringChars
	encoded := []byte(value)
	charCount := utf8.RuneCountInString(value)

	if len(encoded) <= maxBytes && charCount <= desc.StringChars {
		binary.NativeEndian.PutUint32(dst[0:4], uint32(len(encoded)))
		copy(dst[4:], encoded)
		return StatusValid | StatusModified
	}

	var byteLen, chars int
	for _, r := range value {
		rl := utf8.RuneLen(r)
		if chars+1 > desc.StringChars || byteLen+rl > maxBytes {
			break
		}
		byteLen += rl
		chars++
	}
	binary.NativeEndian.PutUint32(dst[0:4], uint32(byteLen))
	copy(dst[4:4+byteLen], encoded[:byteLen])
	return StatusTruncated | StatusModified
}

// DecodeString reads a UTF-8 string previously written by EncodeString.
func DecodeString(src []byte, desc typedesc.Descriptor) string {
	n := binary.NativeEndian.Uint32(src[0:4])
	if int(n) > desc.ByteCapacity()-4 {
		n = uint32(desc.ByteCapacity() - 4)
	}
	return string(src[4 : 4+n])
}

// EncodeArray writes value's bytes into dst. If value's dtype differs from
// desc.DType, an error is returned immediately (a kind mismatch, not a
// truncation). If value's shape has a different rank (number of
// dimensions) than desc.Shape, ErrShapeMismatch is returned immediately —
// that is a structural argument error, not a size mismatch. If value's
// shape equals desc.Shape and its byte length equals desc.ByteCapacity()
// exactly, the bytes are copied as-is and the field is Valid. Otherwise
// (same rank, different extents) a byte-prefix of value.Data is copied —
// capped at desc.ByteCapacity() if value is longer, zero-padded if
// shorter — and the field is Truncated, never Valid.
func EncodeArray(dst []byte, desc typedesc.Descriptor, value ArrayValue) (Status, error) {
	if value.DType != desc.DType {
		return 0, fmt.Errorf("%w: array dtype %v, want %v", ErrKindMismatch, value.DType, desc.DType)
	}
	if len(value.Shape) != len(desc.Shape) {
		return 0, fmt.Errorf("%w: array has %d dimensions, want %d", ErrShapeMismatch, len(value.Shape), len(desc.Shape))
	}

	capacity := desc.ByteCapacity()
	shapeEqual := slices.Equal(value.Shape, desc.Shape)

	if shapeEqual && len(value.Data) == capacity {
		copy(dst[:capacity], value.Data)
		return StatusValid | StatusModified, nil
	}

	n := len(value.Data)
	if n > capacity {
		n = capacity
	}
	copy(dst[:n], value.Data[:n])
	for i := n; i < capacity; i++ {
		dst[i] = 0
	}
	return StatusTruncated | StatusModified, nil
}

// DecodeArray returns a copy of an array field's raw bytes; the caller
// reshapes them per desc.Shape / desc.DType.
func DecodeArray(src []byte, desc typedesc.Descriptor) []byte {
	capacity := desc.ByteCapacity()
	out := make([]byte, capacity)
	copy(out, src[:capacity])
	return out
}
