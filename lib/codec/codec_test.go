// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

type sampleRecord struct {
	Kind  string            `cbor:"kind"`
	ID    uint64            `cbor:"id"`
	Field map[string]string `cbor:"fields,omitempty"`
}

func TestMarshalDeterministic(t *testing.T) {
	record := sampleRecord{
		Kind:  "task",
		ID:    7,
		Field: map[string]string{"task.name": "worker", "spawn.location": "main.go:10", "a": "b"},
	}

	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(record)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("Marshal produced different bytes for the same value")
		}
	}
}

func TestStreamEncoderDecoder(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for i := uint64(1); i <= 3; i++ {
		if err := encoder.Encode(sampleRecord{Kind: "op", ID: i}); err != nil {
			t.Fatalf("Encode(%d): %v", i, err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i := uint64(1); i <= 3; i++ {
		var decoded sampleRecord
		if err := decoder.Decode(&decoded); err != nil {
			t.Fatalf("Decode(%d): %v", i, err)
		}
		if decoded.ID != i {
			t.Fatalf("decoded ID = %d, want %d", decoded.ID, i)
		}
	}
}

func TestPayloadEncodings(t *testing.T) {
	// Repetitive content so that both compressors actually shrink it.
	record := sampleRecord{
		Kind:  strings.Repeat("resource ", 200),
		ID:    99,
		Field: map[string]string{"concrete_type": strings.Repeat("Mutex ", 100)},
	}

	for _, encoding := range []Encoding{EncodingNone, EncodingZstd, EncodingLZ4} {
		t.Run(string(encoding), func(t *testing.T) {
			payload, size, used, err := EncodePayload(record, encoding)
			if err != nil {
				t.Fatalf("EncodePayload: %v", err)
			}
			if used != encoding {
				t.Fatalf("encoding used = %q, want %q", used, encoding)
			}
			if encoding != EncodingNone && len(payload) >= size {
				t.Fatalf("compressed payload %d bytes, uncompressed %d", len(payload), size)
			}

			var decoded sampleRecord
			if err := DecodePayload(payload, used, size, &decoded); err != nil {
				t.Fatalf("DecodePayload: %v", err)
			}
			if decoded.Kind != record.Kind || decoded.ID != record.ID {
				t.Fatalf("decoded %+v does not match", decoded.ID)
			}
		})
	}
}

func TestPayloadIncompressibleFallsBack(t *testing.T) {
	payload, size, used, err := EncodePayload(sampleRecord{Kind: "t", ID: 1}, EncodingZstd)
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}
	if used != EncodingNone {
		t.Fatalf("tiny payload used %q, want fallback to none", used)
	}
	if len(payload) != size {
		t.Fatalf("payload length %d != size %d for uncompressed payload", len(payload), size)
	}
}

func TestParseEncoding(t *testing.T) {
	for input, want := range map[string]Encoding{"": EncodingNone, "none": EncodingNone, "zstd": EncodingZstd, "lz4": EncodingLZ4} {
		got, err := ParseEncoding(input)
		if err != nil {
			t.Fatalf("ParseEncoding(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseEncoding(%q) = %q, want %q", input, got, want)
		}
	}
	if _, err := ParseEncoding("gzip"); err == nil {
		t.Fatal("ParseEncoding(gzip) succeeded, want error")
	}
}
