// Copyright 2026 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package predicate

import (
	"github.com/in-toto/in-toto-golang/in_toto/slsa_provenance/common"
)

const (
	// TypeSLSAProvenanceV1 is the predicate type of SLSA v1 provenance.
	TypeSLSAProvenanceV1 = "https://slsa.dev/provenance/v1"

	// BuildTypeGitHubWorkflow identifies a build run by a GitHub Actions workflow.
	BuildTypeGitHubWorkflow = "https://slsa-framework.github.io/github-actions-buildtypes/workflow/v1"

	// BuilderIDPrefix is joined with the runner environment to form the builder ID.
	BuilderIDPrefix = "https://github.com/actions/runner"

	// DefaultIssuer is the GitHub Actions OIDC token issuer.
	DefaultIssuer = "https://token.actions.githubusercontent.com"

	// DigestGitCommit is the digest set key for a git commit hash.
	DigestGitCommit = "gitCommit"
)

// Predicate is a SLSA provenance predicate together with its type.
type Predicate struct {
	Type   string `json:"type"`
	Params Params `json:"params"`
}

// Params is the body of a SLSA v1 provenance predicate.
type Params struct {
	BuildDefinition BuildDefinition `json:"buildDefinition"`
	RunDetails      RunDetails      `json:"runDetails"`
}

// BuildDefinition describes what was run and from where.
type BuildDefinition struct {
	BuildType            string               `json:"buildType"`
	ExternalParameters   ExternalParameters   `json:"externalParameters"`
	InternalParameters   InternalParameters   `json:"internalParameters"`
	ResolvedDependencies []ResourceDescriptor `json:"resolvedDependencies"`
}

type ExternalParameters struct {
	Workflow Workflow `json:"workflow"`
}

// Workflow locates the top-level workflow definition.
type Workflow struct {
	Ref        string `json:"ref"`
	Repository string `json:"repository"`
	Path       string `json:"path"`
}

type InternalParameters struct {
	GitHub GitHubParameters `json:"github"`
}

type GitHubParameters struct {
	EventName         string `json:"event_name"`
	RepositoryID      string `json:"repository_id"`
	RepositoryOwnerID string `json:"repository_owner_id"`
}

// ResourceDescriptor references an input artifact by URI and digest.
type ResourceDescriptor struct {
	URI    string           `json:"uri"`
	Digest common.DigestSet `json:"digest"`
}

// RunDetails describes who ran the build and under which invocation.
type RunDetails struct {
	Builder  Builder       `json:"builder"`
	Metadata BuildMetadata `json:"metadata"`
}

type Builder struct {
	ID string `json:"id"`
}

type BuildMetadata struct {
	InvocationID string `json:"invocationId"`
}
