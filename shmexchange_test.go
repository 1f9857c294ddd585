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

package shmexchange

import (
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/fherb2/flexible-shared-memory/internal/region"
	"github.com/fherb2/flexible-shared-memory/internal/typedesc"
)

var exchangeTestCounter atomic.Uint64

func sharedProvider() region.Provider { return region.NewMemProvider() }

func testRegionName(t *testing.T) string {
	t.Helper()
	return t.Name() + "-" + strconv.FormatUint(exchangeTestCounter.Add(1), 10)
}

func dumpOnFail(t *testing.T, v any) {
	t.Helper()
	if t.Failed() {
		t.Log(spew.Sdump(v))
	}
}

func TestScalarWriteReadRoundTrip(t *testing.T) {
	p := sharedProvider()
	name := testRegionName(t)
	ex, err := New([]FieldSpec{
		{Name: "x", Type: "f64"},
		{Name: "n", Type: "i32"},
	}, WithName(name), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ex.Close(); ex.Unlink() })

	if err := ex.Write(map[string]any{"x": 3.5, "n": int32(7)}); err != nil {
		t.Fatal(err)
	}

	snap, err := ex.Read(0, false, false)
	if err != nil {
		t.Fatal(err)
	}
	defer dumpOnFail(t, snap)

	xf, ok := snap.Field("x")
	if !ok || xf.Float64() != 3.5 {
		t.Errorf("field x = %v, want 3.5", xf.Float64())
	}
	nf, ok := snap.Field("n")
	if !ok || nf.Int32() != 7 {
		t.Errorf("field n = %v, want 7", nf.Int32())
	}
	if !xf.Valid() || !xf.Modified() {
		t.Errorf("field x status = valid:%v modified:%v, want true,true", xf.Valid(), xf.Modified())
	}
}

func TestStringTruncationScenario(t *testing.T) {
	// spec.md §8 scenario 1: str[4] field, "héllo" truncates to "héll".
	p := sharedProvider()
	ex, err := New([]FieldSpec{{Name: "msg", Type: "str[4]"}}, WithName(testRegionName(t)), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ex.Close(); ex.Unlink() })

	if err := ex.Write(map[string]any{"msg": "héllo"}); err != nil {
		t.Fatal(err)
	}
	snap, err := ex.Read(0, false, false)
	if err != nil {
		t.Fatal(err)
	}
	msg, _ := snap.Field("msg")
	if msg.Truncated() {
		if got, want := msg.String(), "héll"; got != want {
			t.Errorf("msg = %q, want %q", got, want)
		}
	} else {
		t.Error("expected TRUNCATED status on msg")
	}
}

func TestArrayShapeMismatchScenario(t *testing.T) {
	// spec.md §8 scenario 4: u8[2,2] field, write shape [1,3] (3 elements,
	// one byte short of the 4-byte capacity) must be TRUNCATED.
	p := sharedProvider()
	ex, err := New([]FieldSpec{{Name: "grid", Type: "u8[2,2]"}}, WithName(testRegionName(t)), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ex.Close(); ex.Unlink() })

	av := ArrayValue{DType: DTypeU8, Shape: []int{1, 3}, Data: []byte{1, 2, 3}}
	if err := ex.Write(map[string]any{"grid": av}); err != nil {
		t.Fatal(err)
	}
	snap, err := ex.Read(0, false, false)
	if err != nil {
		t.Fatal(err)
	}
	grid, _ := snap.Field("grid")
	if grid.Valid() {
		t.Error("shape-mismatched array must not be VALID")
	}
	if !grid.Truncated() {
		t.Error("expected TRUNCATED")
	}
}

func TestArrayRankMismatchIsShapeMismatch(t *testing.T) {
	// A value whose shape has a different rank than the declared field
	// (not merely different extents) is a structural write-time error, not
	// a truncation.
	p := sharedProvider()
	ex, err := New([]FieldSpec{{Name: "grid", Type: "u8[2,2]"}}, WithName(testRegionName(t)), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ex.Close(); ex.Unlink() })

	av := ArrayValue{DType: DTypeU8, Shape: []int{4}, Data: []byte{1, 2, 3, 4}}
	err = ex.Write(map[string]any{"grid": av})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Write with rank-mismatched array = %v, want ErrShapeMismatch", err)
	}
}

func TestRingFIFOAndLatestScenario(t *testing.T) {
	// spec.md §8 scenarios 2 and 3: K=3, four sequential writes, a FIFO
	// reader drops the oldest and a latest=true reader skips ahead then
	// times out with nothing further to deliver.
	p := sharedProvider()
	name := testRegionName(t)
	writer, err := New([]FieldSpec{{Name: "a", Type: "i32"}}, WithName(name), WithSlots(3), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { writer.Close(); writer.Unlink() })

	fifo, err := New([]FieldSpec{{Name: "a", Type: "i32"}}, WithName(name), WithSlots(3), WithCreate(false), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { fifo.Close() })

	latest, err := New([]FieldSpec{{Name: "a", Type: "i32"}}, WithName(name), WithSlots(3), WithCreate(false), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { latest.Close() })

	for _, v := range []int32{1, 2, 3, 4} {
		if err := writer.Write(map[string]any{"a": v}); err != nil {
			t.Fatal(err)
		}
		if err := writer.Finalize(); err != nil {
			t.Fatal(err)
		}
	}

	var got []int32
	for i := 0; i < 3; i++ {
		snap, err := fifo.Read(0, false, false)
		if err != nil {
			t.Fatal(err)
		}
		f, _ := snap.Field("a")
		got = append(got, f.Int32())
	}
	want := []int32{2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("FIFO sequence = %v, want %v", got, want)
		}
	}

	snap, err := latest.Read(0, true, false)
	if err != nil {
		t.Fatal(err)
	}
	f, _ := snap.Field("a")
	if f.Int32() != 4 {
		t.Errorf("latest read = %d, want 4", f.Int32())
	}

	if _, err := latest.Read(15*time.Millisecond, true, false); !errors.Is(err, ErrTimeout) {
		t.Errorf("second latest read error = %v, want ErrTimeout", err)
	}
}

func TestSchemaMismatchOnAttach(t *testing.T) {
	// spec.md §8 scenario 5: attaching with a differently named field
	// fails with ErrSchemaMismatch and leaves the region untouched.
	p := sharedProvider()
	name := testRegionName(t)
	writer, err := New([]FieldSpec{{Name: "x", Type: "f64"}}, WithName(name), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { writer.Close(); writer.Unlink() })

	if err := writer.Write(map[string]any{"x": 1.0}); err != nil {
		t.Fatal(err)
	}

	_, err = New([]FieldSpec{{Name: "y", Type: "f64"}}, WithName(name), WithCreate(false), WithProvider(p))
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("attach with mismatched schema error = %v, want ErrSchemaMismatch", err)
	}

	// The region is unaffected: the original writer can still be read.
	snap, err := writer.Read(0, false, false)
	if err != nil {
		t.Fatal(err)
	}
	xf, _ := snap.Field("x")
	if xf.Float64() != 1.0 {
		t.Errorf("x after failed attach = %v, want 1.0", xf.Float64())
	}
}

func TestModeErrorsForWrongSlotCount(t *testing.T) {
	p := sharedProvider()

	single, err := New([]FieldSpec{{Name: "x", Type: "i32"}}, WithName(testRegionName(t)), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { single.Close(); single.Unlink() })

	if err := single.Finalize(); !errors.Is(err, ErrModeError) {
		t.Errorf("Finalize() in single-slot mode error = %v, want ErrModeError", err)
	}

	ringEx, err := New([]FieldSpec{{Name: "x", Type: "i32"}}, WithName(testRegionName(t)), WithSlots(4), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ringEx.Close(); ringEx.Unlink() })

	if err := ringEx.Write(map[string]any{"x": int32(1)}); err != nil {
		t.Fatal(err)
	}
	if err := ringEx.Finalize(); err != nil {
		t.Fatal(err)
	}
	if _, err := ringEx.Read(0, false, true); !errors.Is(err, ErrModeError) {
		t.Errorf("reset_modified on K=4 error = %v, want ErrModeError", err)
	}
}

func TestUnknownFieldAndKindMismatch(t *testing.T) {
	p := sharedProvider()
	ex, err := New([]FieldSpec{{Name: "x", Type: "f64"}}, WithName(testRegionName(t)), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ex.Close(); ex.Unlink() })

	if err := ex.Write(map[string]any{"nope": 1.0}); !errors.Is(err, ErrUnknownField) {
		t.Errorf("unknown field error = %v, want ErrUnknownField", err)
	}
	if err := ex.Write(map[string]any{"x": "not a float"}); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("kind-mismatched write error = %v, want ErrKindMismatch", err)
	}
}

func TestAutoGeneratedNameAndIdempotentClose(t *testing.T) {
	p := sharedProvider()
	ex, err := New([]FieldSpec{{Name: "x", Type: "i32"}}, WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	if ex.Name() == "" {
		t.Error("expected an auto-generated, non-empty name")
	}

	if err := ex.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ex.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil (idempotent)", err)
	}
	if err := ex.Unlink(); err != nil {
		t.Fatal(err)
	}
	if err := ex.Unlink(); err != nil {
		t.Errorf("second Unlink() = %v, want nil (idempotent)", err)
	}
}

func TestWriteAfterCloseFails(t *testing.T) {
	p := sharedProvider()
	ex, err := New([]FieldSpec{{Name: "x", Type: "i32"}}, WithName(testRegionName(t)), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ex.Unlink() })

	if err := ex.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ex.Write(map[string]any{"x": int32(1)}); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close error = %v, want ErrClosed", err)
	}
	if _, err := ex.Read(0, false, false); !errors.Is(err, ErrClosed) {
		t.Errorf("Read after Close error = %v, want ErrClosed", err)
	}
}

func TestOccupancyTracksRingFill(t *testing.T) {
	p := sharedProvider()
	ex, err := New([]FieldSpec{{Name: "x", Type: "i32"}}, WithName(testRegionName(t)), WithSlots(3), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ex.Close(); ex.Unlink() })

	if used, capacity := ex.Occupancy(); used != 0 || capacity != 3 {
		t.Errorf("initial Occupancy = %d/%d, want 0/3", used, capacity)
	}

	for _, v := range []int32{1, 2, 3, 4} {
		ex.Write(map[string]any{"x": v})
		ex.Finalize()
	}

	if used, capacity := ex.Occupancy(); used != 3 || capacity != 3 {
		t.Errorf("Occupancy after 4 writes on K=3 = %d/%d, want 3/3 (capped)", used, capacity)
	}
}

func TestArrayDTypeMismatchIsKindMismatch(t *testing.T) {
	p := sharedProvider()
	ex, err := New([]FieldSpec{{Name: "grid", Type: "u8[2]"}}, WithName(testRegionName(t)), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ex.Close(); ex.Unlink() })

	av := ArrayValue{DType: typedesc.DTypeI32, Shape: []int{2}, Data: []byte{1, 2}}
	if err := ex.Write(map[string]any{"grid": av}); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("dtype-mismatched array write error = %v, want ErrKindMismatch", err)
	}
}
