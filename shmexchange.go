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

// Package shmexchange is a single-producer / multi-consumer lock-free
// exchange over a named shared-memory region, with a byte layout derived
// automatically from a declared record schema. It composes the schema
// compiler (internal/schema), the field codec (internal/codec), the
// even/odd publication protocol (internal/slot), the ring controller
// (internal/ring), and the region manager (internal/region) into the
// public surface described by spec.md §4.7.
package shmexchange

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fherb2/flexible-shared-memory/internal/codec"
	"github.com/fherb2/flexible-shared-memory/internal/region"
	"github.com/fherb2/flexible-shared-memory/internal/ring"
	"github.com/fherb2/flexible-shared-memory/internal/schema"
	"github.com/fherb2/flexible-shared-memory/internal/slot"
	"github.com/fherb2/flexible-shared-memory/internal/typedesc"
)

// Exchange is a live handle on a named shared-memory region: a schema
// compiled once at construction, a mapped region, and the ring/producer/
// reader triple used to write, finalize, and read publications.
type Exchange struct {
	name     string
	layout   schema.Layout
	provider region.Provider
	region   *region.Region
	ring     *ring.Ring
	producer *ring.Producer
	reader   *ring.Reader
	logger   *slog.Logger

	mu       sync.Mutex
	closed   atomic.Bool
	unlinked atomic.Bool
}

// New constructs an Exchange for the given record schema, creating a new
// named region by default (WithCreate(false) attaches to an existing
// one instead). It fails with ErrSchemaError, ErrNameInUse, ErrNotFound,
// ErrSchemaMismatch, or ErrProvider per spec.md §6.
func New(fields []FieldSpec, opts ...Option) (*Exchange, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = generateName()
	}
	if o.slots < 1 {
		o.slots = 1
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.provider == nil {
		o.provider = region.NewOSProvider()
	}

	sch := make(schema.Schema, len(fields))
	for i, f := range fields {
		sch[i] = schema.Field{Name: f.Name, Token: f.Type, Default: f.Default}
	}
	layout, err := schema.Compile(sch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaError, err)
	}

	rl := region.Layout{
		SlotCount:  uint32(o.slots),
		SlotSize:   uint32(layout.SlotSize),
		SchemaHash: layout.SchemaHash,
	}

	var reg *region.Region
	if o.create {
		reg, err = region.Create(o.provider, o.name, rl)
		if err != nil {
			return nil, translateCreateErr(o.name, err)
		}
		for i := 0; i < o.slots; i++ {
			off := region.SlotOffset(region.HeaderSize, layout.SlotSize, i)
			slot.NewView(reg.Mem, off, layout).Init()
		}
		o.logger.Info("shmexchange: created region", "name", o.name, "slots", o.slots)
	} else {
		reg, err = region.Attach(o.provider, o.name, rl)
		if err != nil {
			return nil, translateAttachErr(o.name, err)
		}
		o.logger.Info("shmexchange: attached to region", "name", o.name, "slots", o.slots)
	}

	r := ring.New(reg.Mem, reg.Header, layout, o.logger)

	return &Exchange{
		name:     o.name,
		layout:   layout,
		provider: o.provider,
		region:   reg,
		ring:     r,
		producer: ring.NewProducer(r),
		reader:   ring.NewReader(r),
		logger:   o.logger,
	}, nil
}

func generateName() string {
	id := uuid.New()
	hex := strings.ReplaceAll(id.String(), "-", "")
	return "shm_" + hex[:8]
}

func translateCreateErr(name string, err error) error {
	if errors.Is(err, region.ErrNameInUse) {
		return fmt.Errorf("%w: %s", ErrNameInUse, name)
	}
	return fmt.Errorf("%w: %v", ErrProvider, err)
}

func translateAttachErr(name string, err error) error {
	var mm *region.MismatchError
	if errors.As(err, &mm) {
		return fmt.Errorf("%w: %w", ErrSchemaMismatch, mm)
	}
	if errors.Is(err, region.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return fmt.Errorf("%w: %v", ErrProvider, err)
}

// Name returns the region's name (auto-generated if none was supplied to
// New).
func (e *Exchange) Name() string { return e.name }

// Slots returns K, the ring's slot count.
func (e *Exchange) Slots() int { return int(e.ring.SlotCount()) }

// IsRing reports whether this exchange operates in bounded-ring mode
// (Slots() > 1) rather than single-slot latest-wins mode.
func (e *Exchange) IsRing() bool { return e.ring.IsRing() }

// Occupancy reports the ring's current fill level: used is the number
// of finalized publications not yet overwritten (capped at capacity),
// capacity is K.
func (e *Exchange) Occupancy() (used, capacity uint32) {
	st := e.ring.DebugState()
	return uint32(st.Used), st.Capacity
}

// Write stages one or more named field values into the current
// publication. In single-slot mode (Slots() == 1) the write implicitly
// finalizes, per spec.md §4.5. Fails with ErrUnknownField,
// ErrKindMismatch, ErrShapeMismatch, or ErrClosed.
func (e *Exchange) Write(fields map[string]any) error {
	if e.closed.Load() {
		return ErrClosed
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for name, val := range fields {
		fl, ok := e.layout.FieldByName(name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		idx := e.layout.FieldIndex(fl)
		dst := e.producer.FieldData(fl)

		var st codec.Status
		var err error
		switch fl.Desc.Kind {
		case typedesc.KindScalar:
			st, err = codec.EncodeScalar(dst, fl.Desc, val)
		case typedesc.KindString:
			s, ok := val.(string)
			if !ok {
				return fmt.Errorf("%w: field %q wants string, got %T", ErrKindMismatch, name, val)
			}
			st = codec.EncodeString(dst, fl.Desc, s)
		case typedesc.KindArray:
			av, ok := val.(ArrayValue)
			if !ok {
				return fmt.Errorf("%w: field %q wants ArrayValue, got %T", ErrKindMismatch, name, val)
			}
			st, err = codec.EncodeArray(dst, fl.Desc, av)
		}
		if errors.Is(err, codec.ErrShapeMismatch) {
			return fmt.Errorf("%w: field %q: %v", ErrShapeMismatch, name, err)
		}
		if err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrKindMismatch, name, err)
		}
		e.producer.SetStatus(idx, st)
	}

	if e.ring.SlotCount() == 1 {
		e.producer.Finalize()
	}
	return nil
}

// Finalize publishes the fields staged since the last Finalize. It
// fails with ErrModeError in single-slot mode, where every Write already
// finalizes implicitly (spec.md §6: "this spec requires error in
// single-slot mode to match source behavior").
func (e *Exchange) Finalize() error {
	if e.closed.Load() {
		return ErrClosed
	}
	if e.ring.SlotCount() == 1 {
		return ErrModeError
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.producer.Finalize()
	return nil
}

// Read waits up to timeout for a publication and returns a decoded
// Snapshot of it, or (nil, nil) if timeout == 0 and nothing is pending.
// latest jumps to the most recent publication, skipping any already
// buffered. resetModified clears every field's MODIFIED bit after a
// successful read and is only valid in single-slot mode.
func (e *Exchange) Read(timeout time.Duration, latest, resetModified bool) (*Snapshot, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	res, err := e.reader.Read(timeout, latest, resetModified)
	if err != nil {
		switch {
		case errors.Is(err, ring.ErrTornRead):
			return nil, ErrTornRead
		case errors.Is(err, ring.ErrTimeout):
			return nil, ErrTimeout
		case errors.Is(err, ring.ErrModeError):
			return nil, ErrModeError
		default:
			return nil, fmt.Errorf("shmexchange: %w", err)
		}
	}
	if res == nil {
		return nil, nil
	}
	return decodeSnapshot(e.layout, res.Data, res.WriteID), nil
}

// Close detaches the region's mapping. It is idempotent.
func (e *Exchange) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.logger.Info("shmexchange: closing", "name", e.name)
	return e.region.Close()
}

// Unlink removes the region's name from the OS. It is idempotent;
// calling it again after the first success is a benign no-op, per
// spec.md §4.7.
func (e *Exchange) Unlink() error {
	if !e.unlinked.CompareAndSwap(false, true) {
		return nil
	}
	return e.region.Unlink()
}
