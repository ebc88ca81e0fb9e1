// Copyright 2026 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package predicate

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"github.com/hashicorp/go-multierror"
)

// Claims is the claim set of a GitHub Actions OIDC identity token.
type Claims struct {
	jwt.RegisteredClaims

	Actor             string `json:"actor,omitempty"`
	EventName         string `json:"event_name"`
	JobWorkflowRef    string `json:"job_workflow_ref,omitempty"`
	Ref               string `json:"ref"`
	Repository        string `json:"repository"`
	RepositoryID      string `json:"repository_id"`
	RepositoryOwner   string `json:"repository_owner,omitempty"`
	RepositoryOwnerID string `json:"repository_owner_id"`
	RunAttempt        string `json:"run_attempt"`
	RunID             string `json:"run_id"`
	RunnerEnvironment string `json:"runner_environment"`
	Sha               string `json:"sha"`
	Workflow          string `json:"workflow,omitempty"`
	WorkflowRef       string `json:"workflow_ref"`
	WorkflowSha       string `json:"workflow_sha,omitempty"`
}

// ClaimsSource produces the verified claims of an identity token minted by
// issuer. Implementations own token acquisition, verification and any
// timeout or cancellation of that work.
type ClaimsSource interface {
	Claims(ctx context.Context, issuer string) (*Claims, error)
}

// ClaimsSourceFunc adapts a function to a ClaimsSource.
type ClaimsSourceFunc func(ctx context.Context, issuer string) (*Claims, error)

// Claims implements ClaimsSource
func (f ClaimsSourceFunc) Claims(ctx context.Context, issuer string) (*Claims, error) {
	return f(ctx, issuer)
}

// Validate checks that every claim the predicate is derived from is present.
// All missing claims are reported together.
func (c *Claims) Validate() error {
	var result *multierror.Error
	for _, f := range []struct {
		name  string
		value string
	}{
		{"repository", c.Repository},
		{"repository_id", c.RepositoryID},
		{"repository_owner_id", c.RepositoryOwnerID},
		{"workflow_ref", c.WorkflowRef},
		{"ref", c.Ref},
		{"sha", c.Sha},
		{"event_name", c.EventName},
		{"run_id", c.RunID},
		{"run_attempt", c.RunAttempt},
		{"runner_environment", c.RunnerEnvironment},
	} {
		if f.value == "" {
			result = multierror.Append(result, fmt.Errorf("claim %q is missing", f.name))
		}
	}
	return result.ErrorOrNil()
}
