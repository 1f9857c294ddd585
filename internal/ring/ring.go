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

// Package ring implements the ring controller (spec.md §4.5): slot
// allocation for writing, FIFO and latest reads, lapped-reader recovery,
// and occupancy diagnostics, built on top of internal/slot's publication
// protocol and internal/region's mapped header.
package ring

import (
	"log/slog"
	"time"
	"unsafe"

	"github.com/fherb2/flexible-shared-memory/internal/codec"
	"github.com/fherb2/flexible-shared-memory/internal/region"
	"github.com/fherb2/flexible-shared-memory/internal/schema"
	"github.com/fherb2/flexible-shared-memory/internal/slot"
)

// spinAttempts bounds the busy-wait phase of Read's wait schedule before
// it falls back to a futex wait (a timed sleep where no futex exists).
const spinAttempts = 64

// pollInterval is the sleep granularity once a read falls off the spin
// phase, mirroring the "bounded spin+yield+sleep schedule" spec.md §4.5
// requires when no futex primitive is available.
const pollInterval = 500 * time.Microsecond

// Ring is a mapped region's slot array plus its header, shared by a
// Producer and any number of Readers.
type Ring struct {
	mem    []byte
	hdr    region.HeaderView
	layout schema.Layout
	logger *slog.Logger
}

// New returns a Ring over an already-initialized region.
func New(mem []byte, hdr region.HeaderView, layout schema.Layout, logger *slog.Logger) *Ring {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ring{mem: mem, hdr: hdr, layout: layout, logger: logger}
}

// SlotCount returns K, the number of slots in the ring.
func (r *Ring) SlotCount() uint32 { return r.hdr.SlotCount() }

// IsRing reports whether this region operates in bounded-ring mode
// (K > 1) as opposed to single-slot latest-wins mode.
func (r *Ring) IsRing() bool { return r.SlotCount() > 1 }

func (r *Ring) slotView(idx uint32) slot.View {
	offset := region.SlotOffset(region.HeaderSize, r.layout.SlotSize, int(idx))
	return slot.NewView(r.mem, offset, r.layout)
}

// writeIdxLow32 returns the address of the low 32 bits of the header's
// write_idx field, used as a futex address. write_idx changes on every
// finalized publication, so waking on its low word is sufficient; a
// spurious wake is always safely re-checked by the caller.
func (r *Ring) writeIdxLow32() *uint32 {
	return (*uint32)(unsafe.Pointer(r.hdr.WriteIdxAddr()))
}

// State is a read-only diagnostics snapshot, grounded on the teacher's
// RingState/DebugState pattern (ring.go) and exposed through
// Exchange.Occupancy().
type State struct {
	Capacity uint32
	WriteIdx uint64
	Used     uint64
}

// DebugState returns a snapshot of the ring's occupancy.
func (r *Ring) DebugState() State {
	w := r.hdr.WriteIdx()
	K := uint64(r.SlotCount())
	used := w
	if used > K {
		used = K
	}
	return State{Capacity: r.SlotCount(), WriteIdx: w, Used: used}
}

// Producer is the single writer for a Ring. It stages field writes into
// a private scratch buffer mirroring one slot's status+data layout
// (spec.md §4.5: "stages into a private scratch buffer attached to the
// next slot"), then applies that buffer to the live slot atomically
// inside Finalize's publish.
type Producer struct {
	ring        *Ring
	nextWriteID uint64
	scratch     []byte
	staged      bool
}

// NewProducer returns a Producer for r. Only one Producer per region is
// supported (spec.md §1 Non-goals: no multi-producer writers).
func NewProducer(r *Ring) *Producer {
	return &Producer{ring: r, scratch: make([]byte, r.layout.SlotSize)}
}

func (p *Producer) currentIndex() uint32 {
	K := uint64(p.ring.SlotCount())
	return uint32(p.ring.hdr.WriteIdx() % K)
}

// ensureStaged initializes p.scratch for the current pending publication
// on its first touch: single-slot mode carries forward the live slot's
// status bytes untouched (MODIFIED there reflects the consumer's last
// reset_modified, not the producer's own history); ring mode carries the
// previously finalized slot's status with MODIFIED cleared, matching
// spec.md §4.5's "Modified propagation on new slot".
func (p *Producer) ensureStaged() {
	if p.staged {
		return
	}
	K := uint64(p.ring.SlotCount())
	if K == 1 {
		copy(p.scratch, p.ring.slotView(0).Bytes())
		p.staged = true
		return
	}
	w := p.ring.hdr.WriteIdx()
	idx := uint32(w % K)
	if w == 0 {
		copy(p.scratch, p.ring.slotView(idx).Bytes())
		p.staged = true
		return
	}
	prev := p.ring.slotView(uint32((w - 1) % K))
	copy(p.scratch, prev.Bytes())
	statusOff := p.ring.layout.StatusOffset
	for i := range p.ring.layout.Fields {
		so := statusOff + i
		p.scratch[so] = byte(codec.Status(p.scratch[so]).WithModified(false))
	}
	p.staged = true
}

// FieldData returns the scratch-buffer byte range backing field fl. The
// caller (the codec layer) encodes directly into it.
func (p *Producer) FieldData(fl schema.FieldLayout) []byte {
	p.ensureStaged()
	return p.scratch[fl.DataOffset : fl.DataOffset+fl.DataCapacity]
}

// SetStatus records field index i's status byte in the scratch buffer.
func (p *Producer) SetStatus(index int, st codec.Status) {
	p.ensureStaged()
	p.scratch[p.ring.layout.StatusOffset+index] = byte(st)
}

// Pending reports whether any field has been staged since the last
// Finalize.
func (p *Producer) Pending() bool { return p.staged }

// Finalize runs the C4 publication protocol on the current slot using
// the staged scratch buffer, then advances W. It returns the new
// write_id. Finalize is a no-op-free operation: calling it without any
// staged field still publishes (an "empty" publication), matching
// spec.md §4.5's unconditional advance of W.
func (p *Producer) Finalize() uint64 {
	p.ensureStaged()
	idx := p.currentIndex()
	v := p.ring.slotView(idx)

	p.nextWriteID++
	id := p.nextWriteID

	statusOff := p.ring.layout.StatusOffset
	slotSize := p.ring.layout.SlotSize
	scratch := p.scratch

	v.Publish(id, func() {
		copy(v.Bytes()[statusOff:slotSize], scratch[statusOff:slotSize])
	})

	p.ring.hdr.SetWriteIdx(p.ring.hdr.WriteIdx() + 1)
	futexWake(p.ring.writeIdxLow32(), 1<<30)
	p.staged = false

	return id
}

// Result is one successfully snapshotted publication: a private copy of
// the slot's full bytes (header + status + data) plus its write_id, as
// required by the Exchange layer to decode fields via codec and expose
// status.
type Result struct {
	Data    []byte
	WriteID uint64
}

// Reader is one consumer's private cursor into a Ring. Readers never
// mutate the region except through Read's resetModified in single-slot mode
// (spec.md §5: "the optional MODIFIED-clear in single-slot mode, which
// is a single-consumer privilege and invalid with K>1").
type Reader struct {
	ring   *Ring
	cursor uint64
}

// NewReader returns a Reader for r, with its cursor starting at the
// region's current write_idx so a freshly attached reader sees only
// publications that happen after attach (the ring makes no promise about
// history before attach).
func NewReader(r *Ring) *Reader {
	return &Reader{ring: r, cursor: r.hdr.WriteIdx()}
}

// Read waits up to timeout for a new publication and returns a snapshot
// of it. timeout == 0 returns immediately if nothing is pending (a nil
// Result and nil error, not ErrTimeout — a genuine deadline expiry is
// the only case that returns ErrTimeout). timeout < 0 is invalid.
//
// latest=true jumps the reader's cursor to the most recently finalized
// slot, skipping anything already buffered. resetModified=true clears
// every field's MODIFIED bit on the slot just read, and is only valid
// when the ring has a single slot.
func (r *Reader) Read(timeout time.Duration, latest, resetModified bool) (*Result, error) {
	if timeout < 0 {
		return nil, ErrInvalidTimeout
	}
	K := uint64(r.ring.SlotCount())
	if resetModified && K != 1 {
		return nil, ErrModeError
	}

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	spins := 0
	for {
		w := r.ring.hdr.WriteIdx()

		if latest && w > 0 && w-1 > r.cursor {
			r.cursor = w - 1
		}
		if w >= K && w-r.cursor > K {
			r.ring.logger.Warn("ring: reader lapped", "write_idx", w, "cursor", r.cursor, "slots", K)
			r.cursor = w - K
		}

		if w > r.cursor {
			idx := uint32(r.cursor % K)
			v := r.ring.slotView(idx)
			buf := make([]byte, r.ring.layout.SlotSize)
			if !slot.Snapshot(v, buf) {
				return nil, ErrTornRead
			}

			wid := slot.NewView(buf, 0, r.ring.layout).WriteID()

			if latest {
				r.cursor = w
			} else {
				r.cursor++
			}

			if resetModified {
				for i := range r.ring.layout.Fields {
					st := v.StatusByte(i)
					v.SetStatusByte(i, st.WithModified(false))
				}
			}

			return &Result{Data: buf, WriteID: wid}, nil
		}

		if timeout == 0 {
			return nil, nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, ErrTimeout
		}

		if spins < spinAttempts {
			spins++
			continue
		}

		remaining := pollInterval
		if !deadline.IsZero() {
			if left := time.Until(deadline); left < remaining {
				remaining = left
			}
		}
		if remaining <= 0 {
			return nil, ErrTimeout
		}
		futexWaitTimeout(r.ring.writeIdxLow32(), uint32(w), remaining.Nanoseconds())
	}
}
