// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for runscope binaries.
//
// [GitCommit], [BuildTime], and [Version] are injected with -ldflags -X
// and default to "unknown" / "0.1.0-dev" in development builds. The
// subscription server's status action reports [Short], and the CLI
// warns through [Skewed] when it differs from the agent's in major or
// minor version.
package version
