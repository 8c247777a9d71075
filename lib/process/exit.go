// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Exit codes used by runscope binaries.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// UsageError marks a command-line mistake. Fatal exits with ExitUsage
// for it.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// ExitCode implements the interface Fatal checks.
func (e *UsageError) ExitCode() int { return ExitUsage }

// Usage builds a UsageError from a format string.
func Usage(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// ExitCode returns the code for err: the ExitCode of the first error
// in its chain that has one, else ExitFailure.
func ExitCode(err error) int {
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return ExitFailure
}

// Fatal writes "error: err" to stderr and exits with ExitCode(err).
func Fatal(err error) {
	report(os.Stderr, err)
	os.Exit(ExitCode(err))
}

func report(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}
