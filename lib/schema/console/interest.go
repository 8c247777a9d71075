// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/runscope/lib/codec"
	"github.com/bureau-foundation/runscope/lib/event"
)

// ErrInvalidInterest is wrapped by every Interest validation failure.
var ErrInvalidInterest = errors.New("invalid interest")

// FieldDetail selects how much of each record a subscriber receives.
type FieldDetail string

const (
	// FieldDetailSummary omits metadata fields and histogram buckets.
	FieldDetailSummary FieldDetail = "summary"

	// FieldDetailFull sends every field and the bucketed histograms.
	FieldDetailFull FieldDetail = "full"
)

// Interest is a subscriber's filter over the snapshot stream.
type Interest struct {
	IncludeTasks     bool        `cbor:"include_tasks"`
	IncludeResources bool        `cbor:"include_resources"`
	IncludeAsyncOps  bool        `cbor:"include_async_ops"`
	FieldDetail      FieldDetail `cbor:"field_detail,omitempty"`

	// Compression names the payload encoding for stream frames
	// ("none", "zstd", "lz4"). Empty means none.
	Compression string `cbor:"compression,omitempty"`
}

// AllInterest selects every kind at full detail, uncompressed.
func AllInterest() Interest {
	return Interest{
		IncludeTasks:     true,
		IncludeResources: true,
		IncludeAsyncOps:  true,
		FieldDetail:      FieldDetailFull,
	}
}

// Validate checks that the interest is well formed.
func (i Interest) Validate() error {
	if !i.IncludeTasks && !i.IncludeResources && !i.IncludeAsyncOps {
		return fmt.Errorf("%w: no entity kinds selected", ErrInvalidInterest)
	}
	switch i.FieldDetail {
	case "", FieldDetailSummary, FieldDetailFull:
	default:
		return fmt.Errorf("%w: unknown field_detail %q", ErrInvalidInterest, i.FieldDetail)
	}
	if _, err := codec.ParseEncoding(i.Compression); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInterest, err)
	}
	return nil
}

// Normalized returns i with defaults filled in: full detail and no
// compression.
func (i Interest) Normalized() Interest {
	if i.FieldDetail == "" {
		i.FieldDetail = FieldDetailFull
	}
	if i.Compression == "" {
		i.Compression = string(codec.EncodingNone)
	}
	return i
}

// Includes reports whether kind passes the filter.
func (i Interest) Includes(kind event.Kind) bool {
	switch kind {
	case event.KindTask:
		return i.IncludeTasks
	case event.KindResource:
		return i.IncludeResources
	case event.KindAsyncOp:
		return i.IncludeAsyncOps
	default:
		return false
	}
}

// Encoding returns the parsed compression setting. Invalid values,
// which Validate rejects, map to no compression.
func (i Interest) Encoding() codec.Encoding {
	encoding, err := codec.ParseEncoding(i.Compression)
	if err != nil {
		return codec.EncodingNone
	}
	return encoding
}

// Key is a comparable form of the filtering part of the interest, used
// to share one filtered view among subscribers with equal interests.
type Key struct {
	Tasks, Resources, AsyncOps bool
	Detail                     FieldDetail
}

// Key returns the view key for i. Compression does not affect the
// view's content.
func (i Interest) Key() Key {
	normalized := i.Normalized()
	return Key{
		Tasks:     normalized.IncludeTasks,
		Resources: normalized.IncludeResources,
		AsyncOps:  normalized.IncludeAsyncOps,
		Detail:    normalized.FieldDetail,
	}
}
