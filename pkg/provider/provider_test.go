// Copyright 2025 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
)

// discoveryServer serves an OIDC discovery document after failing the
// first failures requests with a 500.
func discoveryServer(t *testing.T, failures int32) (*httptest.Server, *int32) {
	t.Helper()
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) <= failures {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		issuerURL := "http://" + r.Host
		fmt.Fprintf(w, `{"issuer":%q,"authorization_endpoint":%q,"token_endpoint":%q,"jwks_uri":%q}`,
			issuerURL, issuerURL+"/auth", issuerURL+"/token", issuerURL+"/jwks")
	}))
	t.Cleanup(server.Close)
	return server, &attempts
}

func TestNewProviderWithRetry_Success(t *testing.T) {
	server, _ := discoveryServer(t, 0)

	p, err := newProviderWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("newProviderWithRetry() = %v", err)
	}
	if p == nil {
		t.Fatal("expected provider, got nil")
	}
}

func TestNewProviderWithRetry_EventualSuccess(t *testing.T) {
	server, attempts := discoveryServer(t, 2)

	start := time.Now()
	p, err := newProviderWithRetry(context.Background(), server.URL)
	duration := time.Since(start)

	if err != nil {
		t.Fatalf("newProviderWithRetry() = %v", err)
	}
	if p == nil {
		t.Fatal("expected provider, got nil")
	}
	if got := atomic.LoadInt32(attempts); got != 3 {
		t.Fatalf("attempts = %d, wanted 3", got)
	}
	// Two backoffs starting at one second, with jitter.
	if duration < time.Second {
		t.Fatalf("expected retry backoff, but completed in %v", duration)
	}
}

func TestNewProviderWithRetry_ContextCancellation(t *testing.T) {
	server, attempts := discoveryServer(t, 1000)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	p, err := newProviderWithRetry(ctx, server.URL)
	duration := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("newProviderWithRetry() = %v, wanted %v", err, context.DeadlineExceeded)
	}
	if p != nil {
		t.Fatal("expected nil provider after context cancellation")
	}
	if got := atomic.LoadInt32(attempts); got == 0 || got > 10 {
		t.Fatalf("attempts = %d, wanted between 1 and 10", got)
	}
	if duration > 3*time.Second {
		t.Fatalf("expected cancellation around 2s, but took %v", duration)
	}
}

func TestNewProviderWithRetry_Permanent(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.NotFound(w, nil)
	}))
	defer server.Close()

	if _, err := newProviderWithRetry(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for a missing discovery document")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, wanted 1", got)
	}
}

func TestIsPermanentError(t *testing.T) {
	tests := []struct {
		statusCode int
		permanent  bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusUnauthorized, true},
		{http.StatusForbidden, true},
		{http.StatusNotFound, true},
		{http.StatusGone, true},
		{http.StatusUnprocessableEntity, true},
		{http.StatusNotImplemented, true},

		{http.StatusRequestTimeout, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusBadGateway, false},
		{http.StatusServiceUnavailable, false},
		{http.StatusGatewayTimeout, false},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.statusCode), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.statusCode)
				w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			// Classify the error go-oidc actually produces.
			_, err := oidc.NewProvider(context.Background(), server.URL)
			if err == nil {
				t.Fatalf("expected go-oidc to fail for status %d", tc.statusCode)
			}
			if got := isPermanentError(err); got != tc.permanent {
				t.Errorf("isPermanentError(%q) = %v, wanted %v", err, got, tc.permanent)
			}
		})
	}

	if isPermanentError(errors.New("dial tcp: connection refused")) {
		t.Error("network errors should be retried")
	}
}

func TestGetCaches(t *testing.T) {
	server, attempts := discoveryServer(t, 0)
	ctx := context.Background()

	for range 3 {
		if _, err := Get(ctx, server.URL); err != nil {
			t.Fatalf("Get() = %v", err)
		}
	}
	if got := atomic.LoadInt32(attempts); got != 1 {
		t.Errorf("discovery requests = %d, wanted 1", got)
	}
}

func TestAddTestKeySetVerifier(t *testing.T) {
	ctx := context.Background()
	iss := "https://token.actions.githubusercontent.com"

	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("cannot generate RSA key %v", err)
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: pk}, nil)
	if err != nil {
		t.Fatalf("jose.NewSigner() = %v", err)
	}
	token, err := josejwt.Signed(signer).Claims(josejwt.Claims{
		Subject:  "repo:octo/hello-world:ref:refs/heads/main",
		Issuer:   iss,
		Audience: josejwt.Audience{"provenance"},
		Expiry:   josejwt.NewNumericDate(time.Now().Add(10 * time.Minute)),
	}).Serialize()
	if err != nil {
		t.Fatalf("Serialize() = %v", err)
	}

	AddTestKeySetVerifier(t, iss, &oidc.StaticKeySet{
		PublicKeys: []crypto.PublicKey{pk.Public()},
	})

	v, err := Verifier(ctx, iss, &oidc.Config{ClientID: "provenance"})
	if err != nil {
		t.Fatalf("Verifier() = %v", err)
	}
	tok, err := v.Verify(ctx, token)
	if err != nil {
		t.Fatalf("Verify() = %v", err)
	}
	if tok.Subject != "repo:octo/hello-world:ref:refs/heads/main" {
		t.Errorf("Subject = %q", tok.Subject)
	}
}
