// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package maxsize

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
)

// ErrTooLarge is returned when a response body exceeds the configured limit.
var ErrTooLarge = errors.New("response body too large")

// NewRoundTripper creates a new http.RoundTripper that wraps the given
// http.RoundTripper and fails reads of response bodies larger than maxSize
// bytes with ErrTooLarge.
func NewRoundTripper(maxSize int64, inner http.RoundTripper) http.RoundTripper {
	if inner == nil {
		inner = http.DefaultTransport
	}
	return &ms{
		base:        inner,
		maxBodySize: maxSize,
	}
}

type ms struct {
	base        http.RoundTripper // The underlying RoundTripper
	maxBodySize int64             // Maximum allowed response body size in bytes
}

// RoundTrip implements http.RoundTripper
func (rt *ms) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.ContentLength > rt.maxBodySize {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s exceeds %s", ErrTooLarge, humanize.IBytes(uint64(resp.ContentLength)), humanize.IBytes(uint64(rt.maxBodySize)))
	}

	resp.Body = &lr{
		r:         resp.Body,
		remaining: rt.maxBodySize,
		limit:     rt.maxBodySize,
		close:     resp.Body.Close,
	}
	return resp, nil
}

// lr reads up to limit bytes and then errors if the body has more.
type lr struct {
	r         io.Reader
	remaining int64
	limit     int64
	close     func() error
}

// Read implements io.Reader
func (l *lr) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		// Probe for one more byte to tell an exact fit from an overflow.
		var probe [1]byte
		n, err := l.r.Read(probe[:])
		if n > 0 {
			return 0, fmt.Errorf("%w: exceeds %s", ErrTooLarge, humanize.IBytes(uint64(l.limit)))
		}
		return 0, err
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}

// Close implements io.Closer
func (l *lr) Close() error {
	return l.close()
}
