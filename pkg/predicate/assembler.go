// Copyright 2026 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package predicate

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/in-toto/in-toto-golang/in_toto/slsa_provenance/common"

	"github.com/octo-sts/provenance/pkg/workflowref"
)

// ErrNoClaims is returned when a ClaimsSource reports neither claims nor
// an error.
var ErrNoClaims = errors.New("claims source returned no claims")

// Assembler turns GitHub Actions identity claims into SLSA v1 provenance.
// It holds only immutable configuration and is safe for concurrent use.
type Assembler struct {
	serverURL string
	strict    bool
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithStrict rejects claim sets with missing claims or a workflow_ref that
// does not belong to the claimed repository, instead of producing a
// best-effort predicate.
func WithStrict() Option {
	return func(a *Assembler) {
		a.strict = true
	}
}

// New returns an Assembler for workflows run on the GitHub instance at
// serverURL, e.g. https://github.com.
func New(serverURL string, opts ...Option) *Assembler {
	a := &Assembler{
		serverURL: serverURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Generate fetches claims for issuer from src and builds the predicate.
// An empty issuer selects DefaultIssuer. Errors from src are returned
// unchanged and no predicate is produced on any failure.
func (a *Assembler) Generate(ctx context.Context, src ClaimsSource, issuer string) (*Predicate, error) {
	if issuer == "" {
		issuer = DefaultIssuer
	}

	claims, err := src.Claims(ctx, issuer)
	if err != nil {
		return nil, err
	}
	if claims == nil {
		return nil, ErrNoClaims
	}

	var opts []workflowref.Option
	if a.strict {
		if err := claims.Validate(); err != nil {
			return nil, fmt.Errorf("invalid claims: %w", err)
		}
		opts = append(opts, workflowref.Strict())
	} else if !workflowref.MatchesRepository(claims.WorkflowRef, claims.Repository) {
		clog.WarnContextf(ctx, "workflow_ref %q is not prefixed by repository %q", claims.WorkflowRef, claims.Repository)
	}

	ref, err := workflowref.Resolve(claims.WorkflowRef, claims.Repository, opts...)
	if err != nil {
		return nil, err
	}
	clog.FromContext(ctx).Infof("building provenance for %s (%s)", claims.Repository, ref)

	return a.Build(claims, ref), nil
}

// Build assembles the predicate from claims and the resolved workflow
// reference. It does not validate its inputs.
func (a *Assembler) Build(claims *Claims, ref workflowref.Reference) *Predicate {
	repoURL := a.serverURL + "/" + claims.Repository

	return &Predicate{
		Type: TypeSLSAProvenanceV1,
		Params: Params{
			BuildDefinition: BuildDefinition{
				BuildType: BuildTypeGitHubWorkflow,
				ExternalParameters: ExternalParameters{
					Workflow: Workflow{
						Ref:        ref.Ref,
						Repository: repoURL,
						Path:       ref.Path,
					},
				},
				InternalParameters: InternalParameters{
					GitHub: GitHubParameters{
						EventName:         claims.EventName,
						RepositoryID:      claims.RepositoryID,
						RepositoryOwnerID: claims.RepositoryOwnerID,
					},
				},
				ResolvedDependencies: []ResourceDescriptor{{
					URI: "git+" + repoURL + "@" + claims.Ref,
					Digest: common.DigestSet{
						DigestGitCommit: claims.Sha,
					},
				}},
			},
			RunDetails: RunDetails{
				Builder: Builder{
					ID: BuilderIDPrefix + "/" + claims.RunnerEnvironment,
				},
				Metadata: BuildMetadata{
					InvocationID: fmt.Sprintf("%s/actions/runs/%s/attempts/%s", repoURL, claims.RunID, claims.RunAttempt),
				},
			},
		},
	}
}
