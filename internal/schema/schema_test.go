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

package schema

import (
	"reflect"
	"testing"
)

func exampleSchema() Schema {
	return Schema{
		{Name: "x", Token: "f64"},
		{Name: "y", Token: "f64"},
		{Name: "msg", Token: "str[4]"},
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	l1, err := Compile(exampleSchema())
	if err != nil {
		t.Fatal(err)
	}
	l2, err := Compile(exampleSchema())
	if err != nil {
		t.Fatal(err)
	}
	if l1.SlotSize != l2.SlotSize || l1.SchemaHash != l2.SchemaHash {
		t.Fatalf("Compile is not deterministic: %+v vs %+v", l1, l2)
	}
	for i := range l1.Fields {
		if !reflect.DeepEqual(l1.Fields[i], l2.Fields[i]) {
			t.Fatalf("field %d differs: %+v vs %+v", i, l1.Fields[i], l2.Fields[i])
		}
	}
}

func TestCompileOffsetsAndAlignment(t *testing.T) {
	l, err := Compile(exampleSchema())
	if err != nil {
		t.Fatal(err)
	}
	if l.StatusOffset%8 != 0 {
		t.Errorf("StatusOffset %d not 8-byte aligned", l.StatusOffset)
	}
	if l.SlotSize%8 != 0 {
		t.Errorf("SlotSize %d not a multiple of 8", l.SlotSize)
	}
	for _, f := range l.Fields {
		if f.DataOffset%f.Desc.Alignment() != 0 {
			t.Errorf("field %q offset %d not aligned to %d", f.Name, f.DataOffset, f.Desc.Alignment())
		}
	}
}

func TestCompileEmptySchema(t *testing.T) {
	l, err := Compile(Schema{})
	if err != nil {
		t.Fatalf("Compile(empty): %v", err)
	}
	if len(l.Fields) != 0 {
		t.Errorf("expected no fields, got %d", len(l.Fields))
	}
	if l.SlotSize%8 != 0 {
		t.Errorf("SlotSize %d not a multiple of 8", l.SlotSize)
	}
}

func TestCompileDuplicateFieldName(t *testing.T) {
	s := Schema{{Name: "a", Token: "f64"}, {Name: "a", Token: "i32"}}
	if _, err := Compile(s); err == nil {
		t.Error("Compile should reject duplicate field names")
	}
}

func TestCompileEmptyFieldName(t *testing.T) {
	s := Schema{{Name: "", Token: "f64"}}
	if _, err := Compile(s); err == nil {
		t.Error("Compile should reject an empty field name")
	}
}

func TestCompileBadToken(t *testing.T) {
	s := Schema{{Name: "a", Token: "not-a-type"}}
	if _, err := Compile(s); err == nil {
		t.Error("Compile should reject an unparsable type token")
	}
}

func TestSchemaHashChangesWithFieldOrder(t *testing.T) {
	s1 := Schema{{Name: "a", Token: "f64"}, {Name: "b", Token: "i32"}}
	s2 := Schema{{Name: "b", Token: "i32"}, {Name: "a", Token: "f64"}}
	l1, err := Compile(s1)
	if err != nil {
		t.Fatal(err)
	}
	l2, err := Compile(s2)
	if err != nil {
		t.Fatal(err)
	}
	if l1.SchemaHash == l2.SchemaHash {
		t.Error("SchemaHash should differ when field order differs")
	}
}

func TestFieldByNameAndIndex(t *testing.T) {
	l, err := Compile(exampleSchema())
	if err != nil {
		t.Fatal(err)
	}
	fl, ok := l.FieldByName("msg")
	if !ok {
		t.Fatal("FieldByName(msg) not found")
	}
	if got, want := l.FieldIndex(fl), 2; got != want {
		t.Errorf("FieldIndex(msg) = %d, want %d", got, want)
	}
	if _, ok := l.FieldByName("nope"); ok {
		t.Error("FieldByName(nope) should not be found")
	}
}
