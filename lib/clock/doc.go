// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the injectable time source used by the aggregator,
// the publisher, and the subscription server.
//
// Components that stamp events, measure retention, or tick on a publish
// interval take a Clock instead of calling the time package. Production
// wiring passes Real(). Tests pass Fake() and drive time explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	agg := aggregator.New(aggregator.Config{Clock: fake, ...})
//	go agg.Run(ctx)
//	fake.WaitForTimers(1)              // publish ticker registered
//	fake.Advance(publishInterval)      // one publish tick
//
// Retention checks compare event timestamps against Clock.Now, so a
// fake clock also makes the retention window deterministic.
package clock
