// Copyright 2026 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package workflowref splits the workflow_ref claim of a GitHub Actions
// identity token into the workflow file path and the git ref it was loaded
// from.
//
//	octo/hello-world/.github/workflows/main.yml@main
//	  => .github/workflows/main.yml, main
package workflowref

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingRef is returned when the workflow reference has no "@".
	ErrMissingRef = errors.New("workflow_ref: missing @ separator")

	// ErrRepositoryMismatch is returned in strict mode when the workflow
	// reference does not start with the repository it claims to belong to.
	ErrRepositoryMismatch = errors.New("workflow_ref: not prefixed by repository")

	// ErrMalformed is returned in strict mode when either side of the "@"
	// is empty.
	ErrMalformed = errors.New("workflow_ref: empty path or ref")
)

// Reference is a workflow file location within a repository.
type Reference struct {
	// Path is the workflow file path relative to the repository root.
	Path string `json:"path"`
	// Ref is the git ref the workflow definition was loaded from.
	Ref string `json:"ref"`
}

// String re-joins the reference as path@ref.
func (r Reference) String() string {
	return r.Path + "@" + r.Ref
}

type options struct {
	strict bool
}

// Option configures Resolve.
type Option func(*options)

// Strict makes Resolve reject references that are not prefixed by the
// repository, or that have an empty path or ref.
func Strict() Option {
	return func(o *options) {
		o.strict = true
	}
}

// MatchesRepository reports whether workflowRef starts with repository + "/".
func MatchesRepository(workflowRef, repository string) bool {
	return strings.HasPrefix(workflowRef, repository+"/")
}

// Resolve removes the leading repository + "/" from workflowRef and splits
// what remains on the first "@".
//
// Outside of strict mode a missing repository prefix is tolerated: the
// reference is left unmodified, even when the repository appears later in
// it, and the path keeps whatever precedes the "@".
func Resolve(workflowRef, repository string, opts ...Option) (Reference, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.strict && !MatchesRepository(workflowRef, repository) {
		return Reference{}, fmt.Errorf("%w: %q does not start with %q", ErrRepositoryMismatch, workflowRef, repository+"/")
	}

	path, ref, ok := strings.Cut(strings.TrimPrefix(workflowRef, repository+"/"), "@")
	if !ok {
		return Reference{}, fmt.Errorf("%w: %q", ErrMissingRef, workflowRef)
	}

	if o.strict && (path == "" || ref == "") {
		return Reference{}, fmt.Errorf("%w: %q", ErrMalformed, workflowRef)
	}

	return Reference{
		Path: path,
		Ref:  ref,
	}, nil
}
