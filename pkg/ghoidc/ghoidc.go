// Copyright 2026 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ghoidc requests the GitHub Actions OIDC identity token of the
// running workflow and verifies it into a predicate.Claims.
package ghoidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/chainguard-dev/clog"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/octo-sts/provenance/pkg/jwks"
	"github.com/octo-sts/provenance/pkg/maxsize"
	"github.com/octo-sts/provenance/pkg/oidcvalidate"
	"github.com/octo-sts/provenance/pkg/predicate"
	"github.com/octo-sts/provenance/pkg/provider"
	"github.com/octo-sts/provenance/pkg/ratelimit"
)

// ErrMissingIDTokenWrite is returned when the step has no token request
// credentials, which happens when the workflow lacks the permission.
var ErrMissingIDTokenWrite = errors.New("please add `id-token: write` to your workflow permissions")

const (
	userAgent = "actions/oidc-client"

	// maxResponseSize bounds token and discovery responses.
	maxResponseSize = 1 << 20
)

// HTTPError is a non-200 response from the token request endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("request failed with %s: %s", http.StatusText(e.StatusCode), e.Body)
	}
	return fmt.Sprintf("request failed with %s", http.StatusText(e.StatusCode))
}

// Source is a predicate.ClaimsSource backed by the Actions token service.
type Source struct {
	requestURL   string
	requestToken string
	audience     string
	jwks         string
	transport    http.RoundTripper
	limiter      *rate.Limiter
}

var _ predicate.ClaimsSource = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithAudience requests, and then requires, a token for aud.
func WithAudience(aud string) Option {
	return func(s *Source) {
		s.audience = aud
	}
}

// WithJWKS verifies tokens against a static JWKS instead of the issuer's
// discovery document.
func WithJWKS(raw string) Option {
	return func(s *Source) {
		s.jwks = raw
	}
}

// WithTransport sets the base transport for token and discovery requests.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Source) {
		s.transport = rt
	}
}

// New returns a Source that requests tokens from requestURL, authenticating
// with requestToken. These are the ACTIONS_ID_TOKEN_REQUEST_URL and
// ACTIONS_ID_TOKEN_REQUEST_TOKEN of the step.
func New(requestURL, requestToken string, opts ...Option) *Source {
	s := &Source{
		requestURL:   requestURL,
		requestToken: requestToken,
		transport:    http.DefaultTransport,
		limiter:      ratelimit.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Claims implements predicate.ClaimsSource
func (s *Source) Claims(ctx context.Context, issuer string) (*predicate.Claims, error) {
	if err := oidcvalidate.Issuer(issuer); err != nil {
		return nil, err
	}

	hc := &http.Client{
		Transport: maxsize.NewRoundTripper(maxResponseSize, ratelimit.NewRoundTripper(s.limiter, s.transport)),
	}
	ctx = oidc.ClientContext(ctx, hc)

	raw, err := s.token(ctx, hc)
	if err != nil {
		return nil, err
	}

	// Check who minted the token before fetching keys from anywhere.
	var unverified jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &unverified); err != nil {
		return nil, fmt.Errorf("github/oidc: malformed token: %w", err)
	}
	if unverified.Issuer != issuer {
		return nil, fmt.Errorf("github/oidc: token issuer %q does not match %q", unverified.Issuer, issuer)
	}

	verifier, err := s.verifier(ctx, issuer)
	if err != nil {
		return nil, err
	}
	tok, err := verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("github/oidc: unable to validate token: %w", err)
	}

	claims := new(predicate.Claims)
	if err := tok.Claims(claims); err != nil {
		return nil, fmt.Errorf("github/oidc: decoding claims: %w", err)
	}
	clog.FromContext(ctx).With("sub", tok.Subject).Infof("verified token for %s", claims.Repository)

	return claims, nil
}

func (s *Source) verifier(ctx context.Context, issuer string) (*oidc.IDTokenVerifier, error) {
	if s.jwks != "" {
		var opts []jwks.ConfigOption
		if s.audience != "" {
			opts = append(opts, jwks.WithAudience(s.audience))
		}
		v, err := jwks.NewVerifier(s.jwks, issuer, opts...)
		if err != nil {
			return nil, fmt.Errorf("github/oidc: parsing jwks: %w", err)
		}
		return v, nil
	}

	return provider.Verifier(ctx, issuer, &oidc.Config{
		ClientID:          s.audience,
		SkipClientIDCheck: s.audience == "",
	})
}

// token requests a fresh identity token.
func (s *Source) token(ctx context.Context, hc *http.Client) (string, error) {
	if s.requestURL == "" || s.requestToken == "" {
		return "", ErrMissingIDTokenWrite
	}

	u, err := url.Parse(s.requestURL)
	if err != nil {
		return "", fmt.Errorf("github/oidc: invalid request url: %w", err)
	}
	if s.audience != "" {
		q := u.Query()
		q.Set("audience", s.audience)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("github/oidc: failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	// The request token is sent as a bearer credential over hc.
	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, hc), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: s.requestToken,
	}))
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("github/oidc: failed to request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("github/oidc: failed to obtain token: %w", &HTTPError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	var token struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("github/oidc: bad response: %w", err)
	}
	if token.Value == "" {
		return "", errors.New("github/oidc: empty token in response")
	}
	return token.Value, nil
}
