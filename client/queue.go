//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/CodeGandee/invokeai-go-client/track"
	"github.com/CodeGandee/invokeai-go-client/workflow"
)

// enqueueResponse is the server's answer to an enqueue call.
type enqueueResponse struct {
	Batch struct {
		BatchID string `json:"batch_id"`
	} `json:"batch"`
	ItemIDs    []int64  `json:"item_ids"`
	SessionIDs []string `json:"session_ids"`
	Enqueued   int      `json:"enqueued"`
	Requested  int      `json:"requested"`
}

// EnqueueBatch submits a batch envelope to the queue. It implements
// workflow.Transport. The request carries a fresh idempotency key, so
// connect errors and 5xx responses are retried safely.
func (c *Client) EnqueueBatch(ctx context.Context, req *workflow.EnqueueRequest) (*workflow.EnqueueResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode enqueue request: %w", err)
	}
	header := http.Header{"X-Idempotency-Key": []string{uuid.NewString()}}

	var resp enqueueResponse
	path := fmt.Sprintf("/api/v1/queue/%s/enqueue_batch", url.PathEscape(c.queueID))
	if err := c.doRetry(ctx, http.MethodPost, path, body, &resp, header); err != nil {
		return nil, err
	}
	return &workflow.EnqueueResult{
		BatchID:    resp.Batch.BatchID,
		ItemIDs:    resp.ItemIDs,
		SessionIDs: resp.SessionIDs,
	}, nil
}

// GetSession fetches the state of one session. It implements
// track.SessionSource.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*track.SessionState, error) {
	var state track.SessionState
	path := fmt.Sprintf("/api/v1/sessions/%s", url.PathEscape(sessionID))
	if err := c.getJSON(ctx, path, &state); err != nil {
		return nil, err
	}
	state.Status = track.ParseStatus(string(state.Status))
	return &state, nil
}

// CancelBatch cancels every queue item of a batch. Cancels are never
// retried.
func (c *Client) CancelBatch(ctx context.Context, batchID string) error {
	path := fmt.Sprintf("/api/v1/queue/%s/b/%s/cancel",
		url.PathEscape(c.queueID), url.PathEscape(batchID))
	return c.putJSON(ctx, path, nil, nil)
}

// BatchStatus is the per-state item count of one batch.
type BatchStatus struct {
	BatchID    string `json:"batch_id"`
	Pending    int    `json:"pending"`
	InProgress int    `json:"in_progress"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
	Canceled   int    `json:"canceled"`
	Total      int    `json:"total"`
}

// GetBatchStatus fetches the aggregate progress of one batch.
func (c *Client) GetBatchStatus(ctx context.Context, batchID string) (*BatchStatus, error) {
	var status BatchStatus
	path := fmt.Sprintf("/api/v1/queue/%s/b/%s/status",
		url.PathEscape(c.queueID), url.PathEscape(batchID))
	if err := c.getJSON(ctx, path, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// QueueStatus is the queue-wide item count by state.
type QueueStatus struct {
	Queue struct {
		Pending    int `json:"pending"`
		InProgress int `json:"in_progress"`
		Completed  int `json:"completed"`
		Failed     int `json:"failed"`
		Canceled   int `json:"canceled"`
		Total      int `json:"total"`
	} `json:"queue"`
}

// GetQueueStatus fetches the configured queue's counts.
func (c *Client) GetQueueStatus(ctx context.Context) (*QueueStatus, error) {
	var status QueueStatus
	path := fmt.Sprintf("/api/v1/queue/%s/status", url.PathEscape(c.queueID))
	if err := c.getJSON(ctx, path, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
