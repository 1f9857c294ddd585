//go:build !linux || !(amd64 || arm64)

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

import "errors"

// ErrUnsupported is returned by every OSProvider method on platforms
// without an mmap-backed implementation, mirroring shm_futex_stub.go's
// treatment of unsupported platforms.
var ErrUnsupported = errors.New("region: OS-backed provider not supported on this platform")

// OSProvider is a stub on platforms other than linux/amd64 and
// linux/arm64. Construct a different Provider (an in-memory one for
// tests, for instance) on those platforms.
type OSProvider struct{}

// NewOSProvider returns a stub OSProvider whose methods all fail with
// ErrUnsupported.
func NewOSProvider() OSProvider { return OSProvider{} }

func (OSProvider) Create(name string, size int) (Handle, error) { return nil, ErrUnsupported }
func (OSProvider) Open(name string) (Handle, error)             { return nil, ErrUnsupported }
func (OSProvider) Map(h Handle) ([]byte, error)                 { return nil, ErrUnsupported }
func (OSProvider) Unmap(mem []byte) error                       { return ErrUnsupported }
func (OSProvider) Close(h Handle) error                         { return ErrUnsupported }
func (OSProvider) Unlink(name string) error                     { return ErrUnsupported }
