// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package publish fans aggregator snapshots out to subscribers.
//
// Each [Subscription] owns one bounded channel. The aggregator loop
// calls [Publisher.Publish] once per tick; sends are non-blocking and
// a full channel drops the new message (drop-newest), so a slow
// subscriber never delays the tick or any other subscriber. A
// subscription that lost a message is owed a full snapshot: its next
// delivered message is full rather than a delta, which lets the client
// converge without replaying history. Every message carries the
// subscription's sequence number and cumulative drop count so clients
// can detect gaps.
//
// Snapshots are filtered per subscriber interest. Subscribers with
// equal interests share one filtered view per tick, and the full view
// is materialized at most once per tick, only when some subscriber
// needs it.
//
// Closing a subscription only marks it; the publisher unregisters it
// and closes its message channel on the next tick, so the channel is
// only ever closed by the goroutine that sends on it.
package publish
