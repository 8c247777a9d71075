// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Set with -ldflags "-X github.com/bureau-foundation/runscope/lib/version.Version=...".
var (
	GitCommit = "unknown"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// Info returns "version (commit, build time)".
func Info() string {
	return fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildTime)
}

// Print writes the binary name, Info, and the Go toolchain and
// platform to stdout for --version.
func Print(binary string) {
	fmt.Printf("%s %s\n  Go: %s\n  Platform: %s/%s\n",
		binary, Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns the version number alone. The status action reports
// it.
func Short() string {
	return Version
}

// Skewed reports whether remote differs from this build in major or
// minor version. Wire types only change across minor versions, so a
// patch or pre-release difference is not skew. Unparseable versions
// are treated as skewed.
func Skewed(remote string) bool {
	localMajor, localMinor, ok := majorMinor(Version)
	if !ok {
		return true
	}
	remoteMajor, remoteMinor, ok := majorMinor(remote)
	if !ok {
		return true
	}
	return localMajor != remoteMajor || localMinor != remoteMinor
}

func majorMinor(version string) (string, string, bool) {
	version = strings.TrimPrefix(version, "v")
	major, rest, found := strings.Cut(version, ".")
	if !found || major == "" {
		return "", "", false
	}
	minor, _, _ := strings.Cut(rest, ".")
	minor, _, _ = strings.Cut(minor, "-")
	if minor == "" {
		return "", "", false
	}
	return major, minor, true
}
