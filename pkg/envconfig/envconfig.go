// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package envconfig

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/octo-sts/provenance/pkg/oidcvalidate"
)

// EnvConfig is the environment a GitHub Actions step runs in.
type EnvConfig struct {
	// ServerURL is the base URL of the GitHub instance running the workflow.
	// There is no default: guessing github.com would mislabel provenance
	// from GitHub Enterprise Server.
	ServerURL string `envconfig:"GITHUB_SERVER_URL" required:"true"`

	// IDTokenRequestURL and IDTokenRequestToken are only present when the
	// workflow has the `id-token: write` permission.
	IDTokenRequestURL   string `envconfig:"ACTIONS_ID_TOKEN_REQUEST_URL" required:"false"`
	IDTokenRequestToken string `envconfig:"ACTIONS_ID_TOKEN_REQUEST_TOKEN" required:"false"`

	// Output is the file step outputs are appended to.
	Output string `envconfig:"GITHUB_OUTPUT" required:"false"`

	Audience        string `envconfig:"OIDC_AUDIENCE" required:"false"`
	JWKS            string `envconfig:"OIDC_JWKS" required:"false"`
	EventingIngress string `envconfig:"EVENT_INGRESS_URI" required:"false"`
}

// Process reads the environment into an EnvConfig.
func Process() (*EnvConfig, error) {
	cfg := new(EnvConfig)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}

	if err := oidcvalidate.ServerURL(cfg.ServerURL); err != nil {
		return nil, fmt.Errorf("GITHUB_SERVER_URL: %w", err)
	}
	if cfg.Audience != "" {
		if err := oidcvalidate.Audience(cfg.Audience); err != nil {
			return nil, fmt.Errorf("OIDC_AUDIENCE: %w", err)
		}
	}
	if (cfg.IDTokenRequestURL == "") != (cfg.IDTokenRequestToken == "") {
		return nil, errors.New("ACTIONS_ID_TOKEN_REQUEST_URL and ACTIONS_ID_TOKEN_REQUEST_TOKEN must be set together")
	}

	return cfg, nil
}
