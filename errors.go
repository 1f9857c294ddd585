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

import "errors"

// Error kinds from spec.md §7. Each is a distinct exported sentinel so
// callers can use errors.Is; SchemaMismatch additionally wraps a
// *region.MismatchError naming the disagreeing field.
var (
	ErrSchemaError    = errors.New("shmexchange: schema error")
	ErrSchemaMismatch = errors.New("shmexchange: schema mismatch")
	ErrNameInUse      = errors.New("shmexchange: name already in use")
	ErrNotFound       = errors.New("shmexchange: region not found")
	ErrProvider       = errors.New("shmexchange: provider error")
	ErrUnknownField   = errors.New("shmexchange: unknown field")
	ErrKindMismatch   = errors.New("shmexchange: kind mismatch")
	// ErrShapeMismatch is returned when an array field is written with a
	// value whose shape has a different rank than the field's declared
	// shape. A same-rank size mismatch is not an error: it is reflected as
	// TRUNCATED status per spec.md §4.3.
	ErrShapeMismatch = errors.New("shmexchange: shape mismatch")
	ErrTornRead       = errors.New("shmexchange: torn read, retry budget exhausted")
	ErrTimeout        = errors.New("shmexchange: read timeout")
	ErrClosed         = errors.New("shmexchange: exchange closed")
	ErrModeError      = errors.New("shmexchange: operation not valid for this mode")
)
