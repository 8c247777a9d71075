// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes an aggregator to inspection clients over a
// Unix socket, and provides the matching client.
//
// Every connection carries one CBOR request with an "action" field.
// Request-response actions (status, task_details) receive a single
// Response{ok, error, data} and the connection closes. The subscribe
// action is a stream: after an ok acknowledgement the server writes
// [console.Frame] values (snapshots, periodic heartbeats, and error
// frames for rejected control messages) while the client may write
// [console.Control] values to pause, resume, or change its interest.
// A rejected subscribe request gets an error response and the
// connection closes; no other subscriber is affected.
package server
