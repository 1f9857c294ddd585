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
	"errors"
	"fmt"
	"os"
)

// ErrNameInUse is returned by Provider.Create when a region of that name
// already exists.
var ErrNameInUse = errors.New("region: name already in use")

// ErrNotFound is returned by Provider.Open when no region of that name
// exists.
var ErrNotFound = errors.New("region: not found")

// Handle is an opaque, provider-specific reference to a created or
// opened region, passed back into Map/Close.
type Handle interface {
	// Size reports the handle's backing size in bytes.
	Size() int
}

// Provider is the narrow, injectable capability set spec.md §6 requires:
// create/open/map/close/unlink. The default implementation
// (NewOSProvider) backs regions with files under /dev/shm (falling back
// to os.TempDir), following shm_mmap_unix.go's CreateSegment/OpenSegment
// almost directly. Tests may supply an in-memory double instead.
type Provider interface {
	Create(name string, size int) (Handle, error)
	Open(name string) (Handle, error)
	Map(h Handle) ([]byte, error)
	Unmap(mem []byte) error
	Close(h Handle) error
	Unlink(name string) error
}

// PathFor returns the provider's conventional backing-file path for name,
// used by the OS provider and by diagnostics. It is exported so
// cmd/shmdump can locate a region without depending on provider
// internals.
func PathFor(name string) string {
	return pathFor(name)
}

func pathFor(name string) string {
	if isDevShmAvailable() {
		return "/dev/shm/fsm1_" + name
	}
	return os.TempDir() + "/fsm1_" + name
}

func isDevShmAvailable() bool {
	info, err := os.Stat("/dev/shm")
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Exists reports whether a region of the given name currently exists on
// disk.
func Exists(name string) bool {
	_, err := os.Stat(pathFor(name))
	return err == nil
}

// RemoveFile removes the backing file for name, ignoring a not-exist
// error (unlink is idempotent per spec.md §4.7/§6).
func RemoveFile(name string) error {
	err := os.Remove(pathFor(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("region: remove %s: %w", name, err)
	}
	return nil
}
