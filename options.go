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
	"log/slog"

	"github.com/fherb2/flexible-shared-memory/internal/region"
)

type options struct {
	name     string
	slots    int
	create   bool
	logger   *slog.Logger
	provider region.Provider
}

func defaultOptions() options {
	return options{slots: 1, create: true}
}

// Option configures New, following the small functional-options
// constructors used throughout the teacher (NewShmRingFromSegment,
// NewShmListener) rather than a layered config struct/file.
type Option func(*options)

// WithName sets the region's name. If omitted, New generates one
// (spec.md §6 leaves naming external; this repo follows
// original_source/shared_memory.py's auto-name convention, see
// SPEC_FULL.md §4.1).
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithSlots sets the ring's slot count K. K == 1 (the default) is the
// single-slot latest-wins mode; K > 1 is the bounded FIFO ring.
func WithSlots(k int) Option {
	return func(o *options) { o.slots = k }
}

// WithCreate controls whether New creates a new region (the default) or
// attaches to an existing one.
func WithCreate(create bool) Option {
	return func(o *options) { o.create = create }
}

// WithLogger overrides the default slog.Logger used for lifecycle and
// degraded-condition logging (see SPEC_FULL.md §2.2).
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithProvider injects a Provider other than the default OS-backed one,
// primarily for tests.
func WithProvider(p region.Provider) Option {
	return func(o *options) { o.provider = p }
}
