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

// Package region implements the named shared-memory region: the fixed
// header (magic, version, slot geometry, schema hash, write/read
// indices), attach-time validation, and the OS-provider abstraction used
// to create/open/map/close/unlink it (spec.md §4.6, §6).
package region

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Magic identifies a flexible-shared-memory region (the ASCII bytes
// "FSM1" read most significant byte first as a u32, per spec.md §4.6).
const Magic uint32 = 0x46534D31

// Version is the current region format's major version.
const Version uint16 = 1

// HeaderSize is the fixed region header size in bytes (spec.md §6: slot[0]
// begins at offset 48).
const HeaderSize = 48

// Header overlays the first HeaderSize bytes of a mapped region. Field
// offsets follow spec.md §6 exactly:
//
//	0  magic            u32
//	4  version          u16
//	6  reserved         u16
//	8  slotCount        u32
//	12 slotSize         u32
//	16 schemaHash       u64
//	24 writeIdx         u64 (atomic)
//	32 readHint         u64 (advisory)
//	40 producerAlive    u8
//	41 reserved         [7]byte
type Header struct {
	magic         uint32
	version       uint16
	reserved0     uint16
	slotCount     uint32
	slotSize      uint32
	schemaHash    uint64
	writeIdx      uint64
	readHint      uint64
	producerAlive uint8
	reserved1     [7]byte
}

// HeaderView is a typed accessor over a Header living inside a mapped
// byte region, following the hdrView/ringView pattern of
// shm_segment.go.
type HeaderView struct {
	base unsafe.Pointer
}

// NewHeaderView returns a HeaderView over the first HeaderSize bytes of
// mem.
func NewHeaderView(mem []byte) HeaderView {
	return HeaderView{base: unsafe.Pointer(&mem[0])}
}

func (v HeaderView) header() *Header { return (*Header)(v.base) }

func (v HeaderView) Magic() uint32        { return v.header().magic }
func (v HeaderView) SetMagic(m uint32)    { v.header().magic = m }
func (v HeaderView) Version() uint16      { return v.header().version }
func (v HeaderView) SetVersion(ver uint16) { v.header().version = ver }
func (v HeaderView) SlotCount() uint32    { return v.header().slotCount }
func (v HeaderView) SetSlotCount(n uint32) { v.header().slotCount = n }
func (v HeaderView) SlotSize() uint32     { return v.header().slotSize }
func (v HeaderView) SetSlotSize(n uint32) { v.header().slotSize = n }
func (v HeaderView) SchemaHash() uint64   { return v.header().schemaHash }
func (v HeaderView) SetSchemaHash(h uint64) { v.header().schemaHash = h }

func (v HeaderView) WriteIdx() uint64 {
	return atomic.LoadUint64(&v.header().writeIdx)
}
func (v HeaderView) SetWriteIdx(idx uint64) {
	atomic.StoreUint64(&v.header().writeIdx, idx)
}
func (v HeaderView) CompareAndSwapWriteIdx(old, new uint64) bool {
	return atomic.CompareAndSwapUint64(&v.header().writeIdx, old, new)
}

func (v HeaderView) ReadHint() uint64 {
	return atomic.LoadUint64(&v.header().readHint)
}
func (v HeaderView) SetReadHint(idx uint64) {
	atomic.StoreUint64(&v.header().readHint, idx)
}

// ProducerAlive/SetProducerAlive are advisory only (no reader correctness
// depends on them under the single-producer model spec.md assumes), so
// they are plain byte accesses rather than atomics, matching how
// shm_segment.go treats purely informational fields.
func (v HeaderView) ProducerAlive() bool {
	return v.header().producerAlive != 0
}

func (v HeaderView) SetProducerAlive(alive bool) {
	if alive {
		v.header().producerAlive = 1
	} else {
		v.header().producerAlive = 0
	}
}

// WriteIdxAddr exposes the write index's address for futex-style waits in
// the ring controller; it must never be mutated through this pointer
// outside of SetWriteIdx/CompareAndSwapWriteIdx.
func (v HeaderView) WriteIdxAddr() *uint64 { return &v.header().writeIdx }

// Layout describes the geometry a region was created with, independent
// of any particular mapping.
type Layout struct {
	SlotCount  uint32
	SlotSize   uint32
	SchemaHash uint64
}

// Size returns the exact unrounded byte size of a region with this
// layout: the header plus slotCount slots.
func (l Layout) Size() int {
	return HeaderSize + int(l.SlotCount)*int(l.SlotSize)
}

// Init writes a freshly created region's header fields.
func Init(mem []byte, l Layout) {
	v := NewHeaderView(mem)
	v.SetMagic(Magic)
	v.SetVersion(Version)
	v.SetSlotCount(l.SlotCount)
	v.SetSlotSize(l.SlotSize)
	v.SetSchemaHash(l.SchemaHash)
	v.SetWriteIdx(0)
	v.SetReadHint(0)
	v.SetProducerAlive(true)
}

// MismatchField names the header field Validate found disagreeing.
type MismatchField string

const (
	MismatchMagic      MismatchField = "magic"
	MismatchVersion    MismatchField = "version"
	MismatchSlotSize   MismatchField = "slot_size"
	MismatchSlotCount  MismatchField = "slot_count"
	MismatchSchemaHash MismatchField = "schema_hash"
)

// MismatchError reports exactly which header field disagreed at attach
// time, per spec.md §4.6 ("mismatch fails attach with a distinct error
// per field").
type MismatchError struct {
	Field MismatchField
	Got   any
	Want  any
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("region: %s mismatch: got %v, want %v", e.Field, e.Got, e.Want)
}

// Validate checks a mapped region's header against the expected layout.
// On create=false attach, the caller's schema hash/slot geometry must
// match exactly.
func Validate(mem []byte, want Layout) error {
	if len(mem) < HeaderSize {
		return fmt.Errorf("region: mapped region too small: %d bytes", len(mem))
	}
	v := NewHeaderView(mem)
	if v.Magic() != Magic {
		return &MismatchError{Field: MismatchMagic, Got: v.Magic(), Want: Magic}
	}
	if v.Version() != Version {
		return &MismatchError{Field: MismatchVersion, Got: v.Version(), Want: Version}
	}
	if v.SlotSize() != want.SlotSize {
		return &MismatchError{Field: MismatchSlotSize, Got: v.SlotSize(), Want: want.SlotSize}
	}
	if v.SlotCount() != want.SlotCount {
		return &MismatchError{Field: MismatchSlotCount, Got: v.SlotCount(), Want: want.SlotCount}
	}
	if v.SchemaHash() != want.SchemaHash {
		return &MismatchError{Field: MismatchSchemaHash, Got: v.SchemaHash(), Want: want.SchemaHash}
	}
	return nil
}
