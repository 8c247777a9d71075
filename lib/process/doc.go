// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helper shared by runscope
// binaries: reporting a fatal error from run() before or after the
// structured logger exists.
package process
