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

import "sync"

// memHandle is MemProvider's Handle: a plain byte slice standing in for
// a memory-mapped file.
type memHandle struct {
	mem []byte
}

func (h *memHandle) Size() int { return len(h.mem) }

// MemProvider is an in-process Provider backed by plain byte slices
// instead of real shared memory. spec.md §6 explicitly allows "a test
// double" as the injected provider; this is that double, shared across
// the module's own tests (and usable by any caller that wants to run
// the exchange within a single process without touching the
// filesystem).
type MemProvider struct {
	mu      sync.Mutex
	regions map[string][]byte
}

// NewMemProvider returns an empty MemProvider.
func NewMemProvider() *MemProvider {
	return &MemProvider{regions: make(map[string][]byte)}
}

func (p *MemProvider) Create(name string, size int) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.regions[name]; ok {
		return nil, ErrNameInUse
	}
	mem := make([]byte, size)
	p.regions[name] = mem
	return &memHandle{mem: mem}, nil
}

func (p *MemProvider) Open(name string) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mem, ok := p.regions[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &memHandle{mem: mem}, nil
}

func (p *MemProvider) Map(h Handle) ([]byte, error) {
	return h.(*memHandle).mem, nil
}

func (p *MemProvider) Unmap(mem []byte) error { return nil }

func (p *MemProvider) Close(h Handle) error { return nil }

func (p *MemProvider) Unlink(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.regions, name)
	return nil
}
