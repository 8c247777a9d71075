// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"time"

	"github.com/bureau-foundation/runscope/lib/codec"
)

// FrameType discriminates stream frames.
type FrameType string

const (
	FrameSnapshot  FrameType = "snapshot"
	FrameHeartbeat FrameType = "heartbeat"

	// FrameError reports a rejected control message. The stream
	// stays open.
	FrameError FrameType = "error"
)

// Frame is one message on a subscription stream. For snapshot frames,
// Payload is a CBOR Snapshot encoded with Encoding; Size is its
// uncompressed length.
type Frame struct {
	Type     FrameType      `cbor:"type"`
	Seq      uint64         `cbor:"seq,omitempty"`
	Dropped  uint64         `cbor:"dropped,omitempty"`
	Encoding codec.Encoding `cbor:"encoding,omitempty"`
	Size     int            `cbor:"size,omitempty"`
	Payload  []byte         `cbor:"payload,omitempty"`
	Error    string         `cbor:"error,omitempty"`
}

// ControlAction names a mid-stream request from the client.
type ControlAction string

const (
	ControlPause    ControlAction = "pause"
	ControlResume   ControlAction = "resume"
	ControlInterest ControlAction = "interest"
)

// Control is sent by the client on an open subscription stream.
type Control struct {
	Action   ControlAction `cbor:"action"`
	Interest *Interest     `cbor:"interest,omitempty"`
}

// SubscribeRequest opens a subscription stream.
type SubscribeRequest struct {
	Action   string   `cbor:"action"`
	Interest Interest `cbor:"interest"`
}

// TaskDetailsRequest asks for one task's full histograms.
type TaskDetailsRequest struct {
	Action string `cbor:"action"`
	ID     uint64 `cbor:"id"`
}

// TaskDetails is the answer to a task_details request.
type TaskDetails struct {
	Now  int64      `cbor:"now"`
	Task TaskUpdate `cbor:"task"`
}

// Status is the answer to a status request.
type Status struct {
	Version     string        `cbor:"version"`
	StartedAt   int64         `cbor:"started_at"`
	Uptime      time.Duration `cbor:"uptime"`
	Ticks       uint64        `cbor:"ticks"`
	Subscribers int           `cbor:"subscribers"`
	QueueLength int           `cbor:"queue_length"`
	QueueCap    int           `cbor:"queue_capacity"`
	Counters    Counters      `cbor:"counters"`
	Resident    Resident      `cbor:"resident"`
}
