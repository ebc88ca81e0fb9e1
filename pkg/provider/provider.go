/*
Copyright 2024 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coreos/go-oidc/v3/oidc"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	maxTries       = 6
	maxElapsedTime = 2 * time.Minute
)

var (
	// providers is an LRU cache of recently used providers.
	providers, _ = lru.New2Q[string, *oidc.Provider](100 /* size */)

	// testKeySets short-circuits discovery for issuers registered by tests.
	testKeySets sync.Map
)

// Get returns the provider for issuer, performing OIDC discovery on the
// first request for it.
func Get(ctx context.Context, issuer string) (*oidc.Provider, error) {
	// Return any providers that we have already constructed
	// to avoid paying for discovery again.
	if p, ok := providers.Get(issuer); ok {
		return p, nil
	}

	p, err := newProviderWithRetry(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("constructing %q provider: %w", issuer, err)
	}

	// Once it is built, memoize the provider so that we hit the fast
	// path above on subsequent requests for verification.
	providers.Add(issuer, p)

	return p, nil
}

// Verifier returns an ID token verifier for issuer configured with cfg.
func Verifier(ctx context.Context, issuer string, cfg *oidc.Config) (*oidc.IDTokenVerifier, error) {
	if ks, ok := testKeySets.Load(issuer); ok {
		return oidc.NewVerifier(issuer, ks.(oidc.KeySet), cfg), nil
	}

	p, err := Get(ctx, issuer)
	if err != nil {
		return nil, err
	}
	return p.Verifier(cfg), nil
}

// AddTestKeySetVerifier makes Verifier use keySet for issuer instead of
// discovery for the duration of the test.
func AddTestKeySetVerifier(t *testing.T, issuer string, keySet oidc.KeySet) {
	t.Helper()
	testKeySets.Store(issuer, keySet)
	t.Cleanup(func() {
		testKeySets.Delete(issuer)
	})
}

func newProviderWithRetry(ctx context.Context, issuer string) (*oidc.Provider, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second

	return backoff.Retry(ctx, func() (*oidc.Provider, error) {
		p, err := oidc.NewProvider(ctx, issuer)
		if err == nil {
			return p, nil
		}
		if isPermanentError(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxTries),
		backoff.WithMaxElapsedTime(maxElapsedTime),
	)
}

// isPermanentError reports whether a discovery error is not worth retrying.
// go-oidc reports non-200 discovery responses as "<status>: <body>".
func isPermanentError(err error) bool {
	code, _, ok := strings.Cut(err.Error(), " ")
	if !ok || len(code) != 3 {
		return false
	}
	status, convErr := strconv.Atoi(code)
	if convErr != nil {
		return false
	}

	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return false
	case status >= 400 && status < 500:
		return true
	case status == http.StatusNotImplemented:
		return true
	default:
		return false
	}
}
