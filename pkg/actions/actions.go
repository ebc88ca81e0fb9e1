// Copyright 2026 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package actions writes step outputs and workflow commands the way the
// GitHub Actions runner expects them.
package actions

import (
	"fmt"
	"io"

	"github.com/sethvargo/go-githubactions"
)

const outputEnv = "GITHUB_OUTPUT"

// Writer emits step outputs and annotations.
type Writer struct {
	action *githubactions.Action
}

// New returns a Writer appending outputs to outputPath and writing
// workflow commands to stdout. When outputPath is empty, outputs are
// written as set-output commands instead.
//
// The process environment is never consulted, so the caller decides
// where outputs go.
func New(outputPath string, stdout io.Writer) *Writer {
	return &Writer{
		action: githubactions.New(
			githubactions.WithWriter(stdout),
			githubactions.WithGetenv(func(key string) string {
				if key == outputEnv {
					return outputPath
				}
				return ""
			}),
		),
	}
}

// SetOutput sets the step output name to value.
func (w *Writer) SetOutput(name, value string) (err error) {
	// go-githubactions panics when the output file cannot be written.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("setting output %q: %v", name, r)
		}
	}()
	w.action.SetOutput(name, value)
	return nil
}

// SetFailed reports msg as an error annotation on the run. The caller is
// responsible for exiting with a non-zero status.
func (w *Writer) SetFailed(msg string) {
	w.action.Errorf("%s", msg)
}

// Warning reports msg as a warning annotation on the run.
func (w *Writer) Warning(msg string) {
	w.action.Warningf("%s", msg)
}
