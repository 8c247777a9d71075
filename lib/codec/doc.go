// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds runscope's wire encoding: CBOR for every
// structured value on the inspection socket, plus optional block
// compression for snapshot payloads.
//
// The CBOR encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so
// identical snapshots produce identical bytes. Stream-oriented callers
// use NewEncoder and NewDecoder on the connection; buffer-oriented
// callers use Marshal and Unmarshal.
//
// Snapshot payloads can be large on busy hosts. A subscriber may
// negotiate an [Encoding] (zstd or lz4); [EncodePayload] marshals and
// compresses in one step and falls back to [EncodingNone] when the
// payload does not shrink.
//
// Struct tags: wire types in lib/schema/console use `cbor` tags only.
package codec
