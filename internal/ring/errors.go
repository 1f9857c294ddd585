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

package ring

import "errors"

var (
	// errFutexTimeout is the internal futex wait timeout signal; Read
	// treats it identically to an ordinary spin-schedule timeout.
	errFutexTimeout = errors.New("ring: futex wait timeout")

	// ErrTornRead is returned when a snapshot read exhausted its retry
	// budget without observing a stable even seq.
	ErrTornRead = errors.New("ring: torn read, retry budget exhausted")

	// ErrTimeout is returned when Read's deadline passed with no new
	// data available.
	ErrTimeout = errors.New("ring: read timeout")

	// ErrModeError is returned by Read when reset_modified is requested
	// against a multi-slot ring (spec.md §4.5, §7).
	ErrModeError = errors.New("ring: operation not valid for this mode")

	// ErrInvalidTimeout is returned for a negative timeout argument.
	ErrInvalidTimeout = errors.New("ring: timeout must be >= 0")
)
