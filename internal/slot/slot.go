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

// Package slot implements the even/odd sequence-number publication
// protocol and bounded-retry snapshot reads described in spec.md §4.4.
// It has no notion of rings or regions; it operates on a single slot's
// byte range within a larger mapped buffer.
package slot

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/fherb2/flexible-shared-memory/internal/codec"
	"github.com/fherb2/flexible-shared-memory/internal/schema"
)

// TornReadRetryBudget bounds the busy-retry loop in Snapshot before it
// reports a tear, per spec.md §4.4 ("default bound N = 256").
const TornReadRetryBudget = 256

// header overlays the first 16 bytes of a slot: a sequence number (even
// when stable, odd while a publish is in flight) and a monotonically
// increasing write id, stamped on every finalized publication. This
// mirrors the atomic-accessor-over-struct-overlay pattern of
// shm_segment.go's RingHeader, adapted to the odd/even tear-detection
// scheme spec.md §4.4 requires.
type header struct {
	seq     uint64
	writeID uint64
}

func (h *header) Seq() uint64            { return atomic.LoadUint64(&h.seq) }
func (h *header) setSeq(v uint64)        { atomic.StoreUint64(&h.seq, v) }
func (h *header) WriteID() uint64        { return atomic.LoadUint64(&h.writeID) }
func (h *header) setWriteID(v uint64)    { atomic.StoreUint64(&h.writeID, v) }

// View provides typed access to one slot inside a larger mapped byte
// region, given the region's compiled Layout.
type View struct {
	mem    []byte
	offset int
	layout schema.Layout
}

// NewView returns a View over the slot starting at offset within mem.
// mem must stay alive and addressable for the View's lifetime (it is
// typically the mmap'd region itself).
func NewView(mem []byte, offset int, layout schema.Layout) View {
	return View{mem: mem, offset: offset, layout: layout}
}

func (v View) header() *header {
	return (*header)(unsafe.Pointer(&v.mem[v.offset]))
}

// Bytes returns the full slot's byte range (header + status + data), used
// by Snapshot to take a private copy.
func (v View) Bytes() []byte {
	return v.mem[v.offset : v.offset+v.layout.SlotSize]
}

// Seq returns the slot's current sequence number.
func (v View) Seq() uint64 { return v.header().Seq() }

// WriteID returns the slot's current write id.
func (v View) WriteID() uint64 { return v.header().WriteID() }

// StatusByte returns the status byte for field index i.
func (v View) StatusByte(i int) codec.Status {
	return codec.Status(v.mem[v.offset+v.layout.StatusOffset+i])
}

// SetStatusByte sets the status byte for field index i.
func (v View) SetStatusByte(i int, s codec.Status) {
	v.mem[v.offset+v.layout.StatusOffset+i] = byte(s)
}

// FieldData returns the byte range holding field fl's data within this
// slot.
func (v View) FieldData(fl schema.FieldLayout) []byte {
	start := v.offset + fl.DataOffset
	return v.mem[start : start+fl.DataCapacity]
}

// Init sets a freshly created slot to its initial state: seq=0,
// write_id=0, every field UNWRITTEN.
func (v View) Init() {
	h := v.header()
	h.setSeq(0)
	h.setWriteID(0)
	for i := range v.layout.Fields {
		v.SetStatusByte(i, codec.StatusUnwritten)
	}
}

// Publish runs the even/odd publication protocol: it transitions seq to
// odd, invokes fn (which encodes the touched fields and updates their
// status bytes), stamps writeID, then transitions seq back to even,
// making the slot visible. fn must not block.
func (v View) Publish(writeID uint64, fn func()) {
	h := v.header()
	seq := h.Seq()
	h.setSeq(seq + 1)
	fn()
	h.setWriteID(writeID)
	h.setSeq(seq + 2)
}

// Snapshot copies the slot's current contents into dst (which must be at
// least len(v.Bytes()) long) using the seq-guarded retry protocol from
// spec.md §4.4. It returns true if a consistent copy was obtained within
// TornReadRetryBudget attempts, or false if the budget was exhausted
// (a torn read).
func Snapshot(v View, dst []byte) bool {
	h := v.header()
	for attempt := 0; attempt < TornReadRetryBudget; attempt++ {
		seq0 := h.Seq()
		if seq0%2 != 0 {
			runtime.Gosched()
			continue
		}
		copy(dst, v.Bytes())
		seq1 := h.Seq()
		if seq1 == seq0 {
			return true
		}
		runtime.Gosched()
	}
	return false
}
