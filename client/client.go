//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

// Package client is the HTTP transport for an image-generation server
// and the convenience façade over workflow loading, submission, and
// tracking.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/CodeGandee/invokeai-go-client/log"
	"github.com/CodeGandee/invokeai-go-client/track"
)

// ErrAssetNotFound is returned when the server does not know the
// requested board or image.
var ErrAssetNotFound = errors.New("asset not found")

// APIError is a non-2xx server response.
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to one server. It is safe for concurrent use by
// independent workflow handles.
type Client struct {
	baseURL    string
	apiKey     string
	queueID    string
	httpClient *http.Client
	maxRetries int

	pollInitial time.Duration
	pollMax     time.Duration
	strictTypes bool
	eventMode   track.Mode
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		queueID:     defaultQueueID,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		maxRetries:  defaultMaxRetries,
		pollInitial: defaultPollInitial,
		pollMax:     defaultPollMax,
		eventMode:   track.ModeAuto,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string { return c.baseURL }

// QueueID returns the configured queue.
func (c *Client) QueueID() string { return c.queueID }

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// do issues the request once and decodes a 2xx JSON body into out.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// retryable reports whether an error is worth retrying: connect-level
// failures and 5xx responses.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return err != nil
}

// doRetry issues the request with exponential backoff. Only idempotent
// calls may pass through here; the request body is replayed from the
// given bytes on every attempt.
func (c *Client) doRetry(ctx context.Context, method, path string, body []byte, out any, header http.Header) error {
	policy := backoff.NewExponentialBackOff()
	operation := func() (struct{}, error) {
		req, err := c.newRequest(ctx, method, path, body)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		for key, values := range header {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}
		if err := c.do(req, out); err != nil {
			if !retryable(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			log.Debugf("transport: retrying %s %s: %v", method, path, err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.maxRetries)+1),
	)
	return err
}

// getJSON fetches an endpoint with retries.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.doRetry(ctx, http.MethodGet, path, nil, out, nil)
}

// postJSON posts without retries; used for non-idempotent calls.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// putJSON issues a PUT without retries.
func (c *Client) putJSON(ctx context.Context, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := c.newRequest(ctx, http.MethodPut, path, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// getBytes fetches a binary endpoint with retries.
func (c *Client) getBytes(ctx context.Context, path string) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	operation := func() ([]byte, error) {
		req, err := c.newRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			log.Debugf("transport: retrying GET %s: %v", path, err)
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
			if apiErr.StatusCode >= 500 {
				return nil, apiErr
			}
			return nil, backoff.Permanent(apiErr)
		}
		return io.ReadAll(resp.Body)
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.maxRetries)+1),
	)
}
