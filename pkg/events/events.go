// Copyright 2024 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/cloudevents/sdk-go/v2/protocol"
)

const (
	// EventType is the CloudEvents type of provenance events.
	EventType = "dev.octo-sts.provenance"
	// Source is the CloudEvents source of provenance events.
	Source = "https://octo-sts.dev/provenance"

	retryDelay = 10 * time.Millisecond
	maxRetry   = 3
)

// NewClient returns a CloudEvents client delivering to target over HTTP,
// or a client that drops every event when target is empty.
func NewClient(target string) (cloudevents.Client, error) {
	if target == "" {
		return Discard{}, nil
	}
	return cloudevents.NewClientHTTP(cloudevents.WithTarget(target))
}

// Emit sends e. Delivery failures are logged, never returned: events must
// not fail the step.
func Emit(ctx context.Context, client cloudevents.Client, e Event) {
	ev := cloudevents.NewEvent()
	ev.SetType(EventType)
	ev.SetSource(Source)
	ev.SetSubject(fmt.Sprintf("%s/%s", e.Repository, e.Workflow.Path))
	if err := ev.SetData(cloudevents.ApplicationJSON, e); err != nil {
		clog.FromContext(ctx).Infof("Failed to encode event payload: %v", err)
		return
	}

	rctx := cloudevents.ContextWithRetriesExponentialBackoff(context.WithoutCancel(ctx), retryDelay, maxRetry)
	if ceresult := client.Send(rctx, ev); cloudevents.IsUndelivered(ceresult) || cloudevents.IsNACK(ceresult) {
		clog.FromContext(ctx).Errorf("Failed to deliver event: %v", ceresult)
	}
}

// Discard is a cloudevents.Client that drops every event.
type Discard struct{}

var _ cloudevents.Client = Discard{}

// Send implements cloudevents.Client
func (Discard) Send(context.Context, event.Event) protocol.Result {
	return nil
}

// Request implements cloudevents.Client
func (Discard) Request(context.Context, event.Event) (*event.Event, protocol.Result) {
	return nil, nil
}

// StartReceiver implements cloudevents.Client
func (Discard) StartReceiver(context.Context, interface{}) error {
	return fmt.Errorf("events: discard client cannot receive")
}
