// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit throttles outbound HTTP requests.
package ratelimit

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Default allows short bursts against the token and discovery endpoints
// while capping the steady rate reached by retry loops.
func Default() *rate.Limiter {
	return rate.NewLimiter(rate.Every(100*time.Millisecond), 5)
}

// RoundTripper waits on a shared limiter before each request.
type RoundTripper struct {
	inner   http.RoundTripper
	limiter *rate.Limiter
}

var _ http.RoundTripper = (*RoundTripper)(nil)

// NewRoundTripper wraps inner, or http.DefaultTransport when inner is nil.
func NewRoundTripper(limiter *rate.Limiter, inner http.RoundTripper) *RoundTripper {
	if inner == nil {
		inner = http.DefaultTransport
	}
	return &RoundTripper{
		inner:   inner,
		limiter: limiter,
	}
}

// RoundTrip implements http.RoundTripper
func (r *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Wait returns early if the request context is done.
	if err := r.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return r.inner.RoundTrip(req)
}
