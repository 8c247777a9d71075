// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package promexport exposes aggregator health as Prometheus metrics.
// Values are read from the aggregator's published Stats at scrape
// time, so scraping never touches the aggregation loop.
package promexport
