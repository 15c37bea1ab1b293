//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package client

import (
	"context"
	"io"
	"time"

	"github.com/CodeGandee/invokeai-go-client/events"
	"github.com/CodeGandee/invokeai-go-client/log"
	"github.com/CodeGandee/invokeai-go-client/track"
	"github.com/CodeGandee/invokeai-go-client/workflow"
)

// LoadWorkflow parses a GUI-exported workflow document and discovers
// its inputs, honoring the client's strict-types setting.
func (c *Client) LoadWorkflow(r io.Reader) (*workflow.Handle, error) {
	def, err := workflow.Load(r)
	if err != nil {
		return nil, err
	}
	return workflow.New(def, workflow.WithStrictTypes(c.strictTypes))
}

// LoadWorkflowFile parses a workflow document from a file.
func (c *Client) LoadWorkflowFile(path string) (*workflow.Handle, error) {
	def, err := workflow.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return workflow.New(def, workflow.WithStrictTypes(c.strictTypes))
}

// Events dials the server's push event channel.
func (c *Client) Events(ctx context.Context) (*events.Stream, error) {
	var opts []events.Option
	if c.apiKey != "" {
		opts = append(opts, events.WithToken(c.apiKey))
	}
	return events.Dial(ctx, c.baseURL, opts...)
}

// SubmitWorkflow validates, substitutes, and enqueues the handle's
// workflow, then returns a tracker following the batch. In event mode
// (and in auto mode when the channel is reachable) the tracker rides
// push events; otherwise it polls with the configured backoff bounds.
func (c *Client) SubmitWorkflow(ctx context.Context, h *workflow.Handle, opts ...workflow.SubmitOption) (*track.Tracker, error) {
	var stream *events.Stream
	switch c.eventMode {
	case track.ModePolling:
	default:
		var err error
		stream, err = c.Events(ctx)
		if err != nil {
			if c.eventMode == track.ModeEvents {
				return nil, err
			}
			log.Warnf("event channel unavailable, falling back to polling: %v", err)
		}
	}

	submission, err := h.Submit(ctx, c, opts...)
	if err != nil {
		if stream != nil {
			_ = stream.Close()
		}
		return nil, err
	}

	trackOpts := []track.Option{
		track.WithPollInterval(c.pollInitial, c.pollMax),
	}
	if stream != nil {
		trackOpts = append(trackOpts, track.WithOwnedEventSource(stream), track.WithMode(track.ModeEvents))
	} else {
		trackOpts = append(trackOpts, track.WithMode(track.ModePolling))
	}
	return track.New(submission, c, trackOpts...), nil
}

// SubmitWorkflowSync submits the workflow and blocks until the batch
// settles or the timeout passes. On timeout the server-side job keeps
// running; cancel through the returned tracker if that is unwanted.
func (c *Client) SubmitWorkflowSync(ctx context.Context, h *workflow.Handle, timeout time.Duration, opts ...workflow.SubmitOption) (*track.Tracker, []*track.SessionState, error) {
	tracker, err := c.SubmitWorkflow(ctx, h, opts...)
	if err != nil {
		return nil, nil, err
	}
	states, err := tracker.WaitTimeout(ctx, timeout)
	if err != nil {
		return tracker, nil, err
	}
	return tracker, states, nil
}
