// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

// Event records the outcome of one predicate generation.
type Event struct {
	Actor         Actor    `json:"actor"`
	Repository    string   `json:"repository,omitempty"`
	Workflow      Workflow `json:"workflow"`
	InvocationID  string   `json:"invocation_id,omitempty"`
	PredicateType string   `json:"predicate_type,omitempty"`
	Error         string   `json:"error,omitempty"`
}

type Actor struct {
	Issuer  string `json:"iss"`
	Subject string `json:"sub,omitempty"`
	Login   string `json:"login,omitempty"`
}

type Workflow struct {
	Path string `json:"path,omitempty"`
	Ref  string `json:"ref,omitempty"`
	Sha  string `json:"sha,omitempty"`
}
