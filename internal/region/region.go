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

package region

import "fmt"

// Region is a mapped shared-memory region: its backing handle, the raw
// mapped bytes, and a typed header view over the first HeaderSize bytes.
// It mirrors shm_segment.go's Segment{File, Mem, H}, narrowed to the
// Provider abstraction so tests can substitute a non-OS backing.
type Region struct {
	Name     string
	Provider Provider
	Handle   Handle
	Mem      []byte
	Header   HeaderView
}

// Create allocates a brand new region of the given name and layout. It
// fails with ErrNameInUse if a region of that name already exists.
func Create(p Provider, name string, l Layout) (*Region, error) {
	h, err := p.Create(name, l.Size())
	if err != nil {
		return nil, err
	}
	mem, err := p.Map(h)
	if err != nil {
		p.Close(h)
		p.Unlink(name)
		return nil, err
	}
	Init(mem, l)
	return &Region{Name: name, Provider: p, Handle: h, Mem: mem, Header: NewHeaderView(mem)}, nil
}

// Attach maps an existing region of the given name and validates its
// header against the caller's expected layout. It fails with ErrNotFound
// if no such region exists, or a *MismatchError if the header disagrees.
func Attach(p Provider, name string, want Layout) (*Region, error) {
	h, err := p.Open(name)
	if err != nil {
		return nil, err
	}
	mem, err := p.Map(h)
	if err != nil {
		p.Close(h)
		return nil, err
	}
	if err := Validate(mem, want); err != nil {
		p.Unmap(mem)
		p.Close(h)
		return nil, err
	}
	return &Region{Name: name, Provider: p, Handle: h, Mem: mem, Header: NewHeaderView(mem)}, nil
}

// Close unmaps the region and closes its backing handle, following
// Segment.Close's ordering (unmap before close, first error wins).
func (r *Region) Close() error {
	var firstErr error
	if r.Mem != nil {
		if err := r.Provider.Unmap(r.Mem); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("region: close %s: %w", r.Name, err)
		}
		r.Mem = nil
	}
	if r.Handle != nil {
		if err := r.Provider.Close(r.Handle); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("region: close %s: %w", r.Name, err)
		}
		r.Handle = nil
	}
	return firstErr
}

// Unlink removes the region's backing storage. Callers that created the
// region are responsible for unlinking it on shutdown; attaching
// processes normally leave that to the creator.
func (r *Region) Unlink() error {
	return r.Provider.Unlink(r.Name)
}

// SlotOffset returns slot i's byte offset within Mem, given the same
// Layout the region was created or attached with.
func SlotOffset(headerSize, slotSize, i int) int {
	return headerSize + i*slotSize
}
