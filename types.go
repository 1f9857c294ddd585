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
	"github.com/fherb2/flexible-shared-memory/internal/codec"
	"github.com/fherb2/flexible-shared-memory/internal/typedesc"
)

// FieldSpec is one entry in a record schema, mirroring spec.md §6's
// normalized schema tuple "(name, kind_token, default)". Type is a token
// in one of three shapes: a bare scalar tag ("f64", "i32", "bool8"),
// "str[N]" for an N-character-capacity UTF-8 string, or
// "dtype[d1,d2,...]" for a numeric array (e.g. "u8[2,2]").
type FieldSpec struct {
	Name    string
	Type    string
	Default any
}

// DType identifies a numeric array element type, re-exported from
// internal/typedesc so callers can build ArrayValue literals without
// reaching into an internal package.
type DType = typedesc.DType

const (
	DTypeF32   = typedesc.DTypeF32
	DTypeF64   = typedesc.DTypeF64
	DTypeI8    = typedesc.DTypeI8
	DTypeI16   = typedesc.DTypeI16
	DTypeI32   = typedesc.DTypeI32
	DTypeI64   = typedesc.DTypeI64
	DTypeU8    = typedesc.DTypeU8
	DTypeU16   = typedesc.DTypeU16
	DTypeU32   = typedesc.DTypeU32
	DTypeU64   = typedesc.DTypeU64
	DTypeBool8 = typedesc.DTypeBool8
)

// ArrayValue is the value passed to Write for an array-kind field: a
// dtype, shape, and the native-endian bytes of its elements in row-major
// order.
type ArrayValue = codec.ArrayValue
