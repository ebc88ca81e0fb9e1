// Copyright 2025 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package oidcvalidate

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// controlCharsAndWhitespace contains ASCII control characters (0x00-0x1f) plus whitespace
	controlCharsAndWhitespace = "\x00\x01\x02\x03\x04\x05\x06\x07\x08\x09\x0a\x0b\x0c\x0d\x0e\x0f\x10\x11\x12\x13\x14\x15\x16\x17\x18\x19\x1a\x1b\x1c\x1d\x1e\x1f \t\n\r"

	maxLength = 255
)

// Issuer checks an OIDC issuer URL per RFC 8414 before it is used for
// discovery:
// - HTTPS, or HTTP to a loopback host
// - no query, fragment or userinfo
// - no trailing slash, empty or dot path segments
// - ASCII hostname
func Issuer(iss string) error {
	if iss == "" {
		return errors.New("issuer is empty")
	}
	if utf8.RuneCountInString(iss) > maxLength {
		return fmt.Errorf("issuer is longer than %d characters", maxLength)
	}

	u, err := url.Parse(iss)
	if err != nil {
		return fmt.Errorf("issuer is not a URL: %w", err)
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !isLoopback(u.Hostname()) {
			return fmt.Errorf("issuer %q must use https", iss)
		}
	default:
		return fmt.Errorf("issuer %q has unsupported scheme %q", iss, u.Scheme)
	}

	if strings.ContainsAny(iss, "?#") {
		return fmt.Errorf("issuer %q must not have a query or fragment", iss)
	}
	if u.User != nil {
		return fmt.Errorf("issuer %q must not carry credentials", iss)
	}
	if err := hostname(u.Hostname()); err != nil {
		return fmt.Errorf("issuer %q: %w", iss, err)
	}

	if u.Path != "" {
		if strings.HasSuffix(u.Path, "/") {
			return fmt.Errorf("issuer %q must not end with a slash", iss)
		}
		for _, segment := range strings.Split(strings.TrimPrefix(u.Path, "/"), "/") {
			if segment == "" || segment == "." || segment == ".." {
				return fmt.Errorf("issuer %q has an invalid path", iss)
			}
		}
	}

	return nil
}

// Audience checks a requested token audience: non-empty, printable, and free
// of characters that would need escaping in a query string or log line.
func Audience(aud string) error {
	if aud == "" {
		return errors.New("audience is empty")
	}
	if utf8.RuneCountInString(aud) > maxLength {
		return fmt.Errorf("audience is longer than %d characters", maxLength)
	}
	if strings.ContainsAny(aud, controlCharsAndWhitespace) {
		return fmt.Errorf("audience %q contains whitespace or control characters", aud)
	}
	if strings.ContainsAny(aud, "\"'`\\<>;|&$(){}[]@") {
		return fmt.Errorf("audience %q contains disallowed characters", aud)
	}
	for _, r := range aud {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("audience %q contains non-printable characters", aud)
		}
	}
	return nil
}

// ServerURL checks the base URL of a GitHub instance, e.g.
// https://github.com. Predicate URLs are built by appending to it, so it
// must be absolute and must not end with a slash.
func ServerURL(raw string) error {
	if raw == "" {
		return errors.New("server url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("server url is not a URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("server url %q must be http(s)", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("server url %q has no host", raw)
	}
	if strings.HasSuffix(raw, "/") {
		return fmt.Errorf("server url %q must not end with a slash", raw)
	}
	return nil
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// hostname rejects hostnames open to homograph attacks and Unicode confusion.
func hostname(h string) error {
	if h == "" {
		return errors.New("missing hostname")
	}
	if strings.ContainsAny(h, controlCharsAndWhitespace) {
		return errors.New("hostname contains whitespace or control characters")
	}
	for _, r := range h {
		if r > unicode.MaxASCII {
			return errors.New("hostname must be ASCII")
		}
	}
	return nil
}
