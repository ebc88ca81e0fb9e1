// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type received struct {
	header http.Header
	body   []byte
}

func TestEmit(t *testing.T) {
	var (
		mu  sync.Mutex
		got []received
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		mu.Lock()
		got = append(got, received{header: r.Header.Clone(), body: b})
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient() = %v", err)
	}

	want := Event{
		Actor: Actor{
			Issuer:  "https://token.actions.githubusercontent.com",
			Subject: "repo:octo/hello-world:ref:refs/heads/main",
			Login:   "octocat",
		},
		Repository: "octo/hello-world",
		Workflow: Workflow{
			Path: ".github/workflows/main.yml",
			Ref:  "main",
			Sha:  "7d9c2f1e0b3a4c5d6e7f8091a2b3c4d5e6f70819",
		},
		InvocationID:  "https://github.com/octo/hello-world/actions/runs/42/attempts/1",
		PredicateType: "https://slsa.dev/provenance/v1",
	}
	Emit(context.Background(), client, want)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("received %d events, wanted 1", len(got))
	}
	if ty := got[0].header.Get("Ce-Type"); ty != EventType {
		t.Errorf("Ce-Type = %q, wanted %q", ty, EventType)
	}
	if src := got[0].header.Get("Ce-Source"); src != Source {
		t.Errorf("Ce-Source = %q, wanted %q", src, Source)
	}
	if sub := got[0].header.Get("Ce-Subject"); sub != "octo/hello-world/.github/workflows/main.yml" {
		t.Errorf("Ce-Subject = %q", sub)
	}

	var e Event
	if err := json.Unmarshal(got[0].body, &e); err != nil {
		t.Fatalf("Unmarshal() = %v", err)
	}
	if diff := cmp.Diff(want, e); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestEmitUndelivered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient() = %v", err)
	}

	// Delivery failures are only logged.
	Emit(context.Background(), client, Event{Repository: "octo/hello-world", Error: "boom"})
}

func TestNewClientDiscard(t *testing.T) {
	client, err := NewClient("")
	if err != nil {
		t.Fatalf("NewClient() = %v", err)
	}
	if _, ok := client.(Discard); !ok {
		t.Fatalf("NewClient(\"\") = %T, wanted Discard", client)
	}
	Emit(context.Background(), client, Event{Repository: "octo/hello-world"})
}
