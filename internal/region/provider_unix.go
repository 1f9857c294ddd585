//go:build linux && (amd64 || arm64)

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

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// osHandle is the default Provider's Handle: an open file plus its mapped
// size. This mirrors shm_mmap_unix.go's Segment.File/Mem pairing, split
// into the narrower Provider contract spec.md §6 asks for.
type osHandle struct {
	file *os.File
	size int
}

func (h *osHandle) Size() int { return h.size }

// OSProvider backs regions with files under /dev/shm (or os.TempDir if
// unavailable), memory-mapped with golang.org/x/sys/unix.Mmap. It is the
// default Provider used by the root package when none is injected.
type OSProvider struct{}

// NewOSProvider returns the default OS-backed Provider.
func NewOSProvider() OSProvider { return OSProvider{} }

// Create creates a new backing file of exactly size bytes (rounded up to
// the system page size) with exclusive-create semantics, following
// shm_mmap_unix.go's CreateSegment.
func (OSProvider) Create(name string, size int) (Handle, error) {
	path := pathFor(name)

	pageSize := unix.Getpagesize()
	rounded := ((size + pageSize - 1) / pageSize) * pageSize

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrNameInUse
		}
		return nil, fmt.Errorf("region: create %s: %w", path, err)
	}

	if err := file.Truncate(int64(rounded)); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("region: truncate %s: %w", path, err)
	}

	return &osHandle{file: file, size: rounded}, nil
}

// Open opens an existing backing file for name, following
// shm_mmap_unix.go's OpenSegment.
func (OSProvider) Open(name string) (Handle, error) {
	path := pathFor(name)

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("region: open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("region: stat %s: %w", path, err)
	}
	if info.Size() < HeaderSize {
		file.Close()
		return nil, fmt.Errorf("region: backing file %s too small: %d bytes", path, info.Size())
	}

	return &osHandle{file: file, size: int(info.Size())}, nil
}

// Map memory-maps h's backing file for shared read/write access.
func (OSProvider) Map(h Handle) ([]byte, error) {
	oh, ok := h.(*osHandle)
	if !ok {
		return nil, fmt.Errorf("region: foreign handle type %T", h)
	}
	mem, err := unix.Mmap(int(oh.file.Fd()), 0, oh.size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("region: mmap: %w", err)
	}
	return mem, nil
}

// Unmap un-maps a region previously returned by Map.
func (OSProvider) Unmap(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("region: munmap: %w", err)
	}
	return nil
}

// Close closes the backing file descriptor. It does not unmap memory
// (callers unmap explicitly via Unmap before Close, mirroring
// Segment.Close's ordering in shm_mmap_unix.go).
func (OSProvider) Close(h Handle) error {
	oh, ok := h.(*osHandle)
	if !ok {
		return fmt.Errorf("region: foreign handle type %T", h)
	}
	if oh.file == nil {
		return nil
	}
	err := oh.file.Close()
	oh.file = nil
	return err
}

// Unlink removes the backing file for name. It is idempotent: removing
// an already-removed name is not an error.
func (OSProvider) Unlink(name string) error {
	return RemoveFile(name)
}
