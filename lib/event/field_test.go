// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import "testing"

func TestNormalizeFieldsOrderingAndFiltering(t *testing.T) {
	input := []Field{
		F(FieldSpawnLocation, "/home/dev/go/pkg/mod/github.com/acme/lib@v1.2.0/pool.go:88"),
		F("zeta", 3),
		F("empty", ""),
		F(FieldTaskName, "flush-loop"),
		F("alpha", true),
	}

	got := NormalizeFields(input)

	wantNames := []string{FieldTaskName, "alpha", "zeta", FieldSpawnLocation}
	if len(got) != len(wantNames) {
		t.Fatalf("got %d fields, want %d: %+v", len(got), len(wantNames), got)
	}
	for i, name := range wantNames {
		if got[i].Name != name {
			t.Fatalf("field %d = %q, want %q", i, got[i].Name, name)
		}
	}

	location := got[3].Value
	if location.Kind != ValueDebug {
		t.Fatalf("spawn.location kind = %d, want ValueDebug", location.Kind)
	}
	if want := "<mod>/github.com/acme/lib@v1.2.0/pool.go:88"; location.Str != want {
		t.Fatalf("spawn.location = %q, want %q", location.Str, want)
	}

	if input[0].Name != FieldSpawnLocation {
		t.Fatal("NormalizeFields modified its input")
	}
}

func TestTruncateLocationLeavesLocalPaths(t *testing.T) {
	if got := TruncateLocation("cmd/agent/main.go:12"); got != "cmd/agent/main.go:12" {
		t.Fatalf("TruncateLocation changed a local path: %q", got)
	}
}

func TestFieldConstructorKinds(t *testing.T) {
	cases := []struct {
		value any
		kind  ValueKind
		text  string
	}{
		{true, ValueBool, "true"},
		{"x", ValueString, "x"},
		{-4, ValueInt, "-4"},
		{uint64(9), ValueUint, "9"},
		{[]int{1, 2}, ValueDebug, "[1 2]"},
	}
	for _, tc := range cases {
		field := F("f", tc.value)
		if field.Value.Kind != tc.kind {
			t.Errorf("F(%v) kind = %d, want %d", tc.value, field.Value.Kind, tc.kind)
		}
		if field.Value.Format() != tc.text {
			t.Errorf("F(%v).Format() = %q, want %q", tc.value, field.Value.Format(), tc.text)
		}
	}
}

func TestTypeKind(t *testing.T) {
	cases := map[Type]Kind{
		TaskSpawned:      KindTask,
		WakerWoken:       KindTask,
		ResourceDropped:  KindResource,
		AsyncOpPollEnd:   KindAsyncOp,
		AsyncOpCompleted: KindAsyncOp,
	}
	for typ, want := range cases {
		if got := typ.Kind(); got != want {
			t.Errorf("%s.Kind() = %s, want %s", typ, got, want)
		}
	}
}
