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
	"sync/atomic"
	"testing"
	"unsafe"
)

var testNameCounter atomic.Uint64

func testName(t *testing.T) string {
	t.Helper()
	return t.Name() + "-" + itoa(testNameCounter.Add(1))
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func TestHeaderSize(t *testing.T) {
	if got, want := unsafe.Sizeof(Header{}), uintptr(48); got != want {
		t.Errorf("unsafe.Sizeof(Header{}) = %d, want %d", got, want)
	}
}

func TestCreateThenAttach(t *testing.T) {
	p := NewMemProvider()
	name := testName(t)
	l := Layout{SlotCount: 4, SlotSize: 64, SchemaHash: 0xdeadbeef}

	r, err := Create(p, name, l)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { r.Close(); r.Unlink() })

	if r.Header.Magic() != Magic {
		t.Errorf("Magic() = %x, want %x", r.Header.Magic(), Magic)
	}
	if r.Header.SlotCount() != 4 || r.Header.SlotSize() != 64 {
		t.Errorf("SlotCount/SlotSize = %d/%d, want 4/64", r.Header.SlotCount(), r.Header.SlotSize())
	}
	if !r.Header.ProducerAlive() {
		t.Error("ProducerAlive() should be true right after Create")
	}

	r2, err := Attach(p, name, l)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer r2.Close()

	if r2.Header.SchemaHash() != l.SchemaHash {
		t.Errorf("attached SchemaHash = %x, want %x", r2.Header.SchemaHash(), l.SchemaHash)
	}
}

func TestCreateNameInUse(t *testing.T) {
	p := NewMemProvider()
	name := testName(t)
	l := Layout{SlotCount: 1, SlotSize: 32, SchemaHash: 1}

	r, err := Create(p, name, l)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close(); r.Unlink() })

	if _, err := Create(p, name, l); !errors.Is(err, ErrNameInUse) {
		t.Errorf("second Create error = %v, want ErrNameInUse", err)
	}
}

func TestAttachNotFound(t *testing.T) {
	p := NewMemProvider()
	l := Layout{SlotCount: 1, SlotSize: 32, SchemaHash: 1}
	if _, err := Attach(p, "nope-"+testName(t), l); !errors.Is(err, ErrNotFound) {
		t.Errorf("Attach error = %v, want ErrNotFound", err)
	}
}

func TestAttachSchemaMismatch(t *testing.T) {
	p := NewMemProvider()
	name := testName(t)
	created := Layout{SlotCount: 4, SlotSize: 64, SchemaHash: 111}

	r, err := Create(p, name, created)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close(); r.Unlink() })

	wrong := created
	wrong.SchemaHash = 222
	_, err = Attach(p, name, wrong)
	var mm *MismatchError
	if !errors.As(err, &mm) {
		t.Fatalf("Attach error = %v, want *MismatchError", err)
	}
	if mm.Field != MismatchSchemaHash {
		t.Errorf("MismatchError.Field = %v, want %v", mm.Field, MismatchSchemaHash)
	}
}

func TestValidateDistinctFieldPerMismatch(t *testing.T) {
	base := Layout{SlotCount: 4, SlotSize: 64, SchemaHash: 1}
	mem := make([]byte, HeaderSize)
	Init(mem, base)

	cases := []struct {
		want  Layout
		field MismatchField
	}{
		{Layout{SlotCount: 4, SlotSize: 999, SchemaHash: 1}, MismatchSlotSize},
		{Layout{SlotCount: 999, SlotSize: 64, SchemaHash: 1}, MismatchSlotCount},
		{Layout{SlotCount: 4, SlotSize: 64, SchemaHash: 999}, MismatchSchemaHash},
	}
	for _, c := range cases {
		err := Validate(mem, c.want)
		var mm *MismatchError
		if !errors.As(err, &mm) {
			t.Fatalf("Validate(%+v) error = %v, want *MismatchError", c.want, err)
		}
		if mm.Field != c.field {
			t.Errorf("Validate(%+v).Field = %v, want %v", c.want, mm.Field, c.field)
		}
	}
}
