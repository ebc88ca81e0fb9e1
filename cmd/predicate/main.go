// Copyright 2026 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/chainguard-dev/clog"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = clog.WithLogger(ctx, clog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		// The error has already been reported as a workflow annotation.
		cancel()
		os.Exit(1)
	}
}
