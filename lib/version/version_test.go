// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import "testing"

func TestSkewed(t *testing.T) {
	saved := Version
	t.Cleanup(func() { Version = saved })
	Version = "0.4.2"

	for _, tc := range []struct {
		remote string
		want   bool
	}{
		{"0.4.2", false},
		{"0.4.9", false},
		{"v0.4.0-dev", false},
		{"0.4-rc1", false},
		{"0.5.0", true},
		{"1.4.2", true},
		{"garbage", true},
		{"", true},
	} {
		if got := Skewed(tc.remote); got != tc.want {
			t.Errorf("Skewed(%q) = %v, want %v", tc.remote, got, tc.want)
		}
	}
}
