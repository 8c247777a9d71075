// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for runscope packages:
// bounded channel receives so a broken test fails instead of hanging,
// and short Unix socket paths.
package testutil
