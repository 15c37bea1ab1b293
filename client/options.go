//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package client

import (
	"net/http"
	"time"

	"github.com/CodeGandee/invokeai-go-client/track"
)

// Default client tuning.
const (
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 2
	defaultQueueID     = "default"
	defaultPollInitial = 500 * time.Millisecond
	defaultPollMax     = 5 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithAPIKey authenticates every request with a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithTimeout sets the default per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithHTTPClient replaces the underlying HTTP client. The client is
// shared by every handle submitted through this Client and must be
// safe for concurrent use.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithMaxRetries bounds transport-level retries of idempotent calls on
// connect errors and 5xx responses.
func WithMaxRetries(retries int) Option {
	return func(c *Client) { c.maxRetries = retries }
}

// WithQueueID targets a queue other than "default".
func WithQueueID(queueID string) Option {
	return func(c *Client) { c.queueID = queueID }
}

// WithPollInterval bounds the polling backoff used by trackers created
// through this client.
func WithPollInterval(initial, max time.Duration) Option {
	return func(c *Client) {
		c.pollInitial = initial
		c.pollMax = max
	}
}

// WithStrictTypes makes workflow loading fail on unresolved field
// kinds instead of degrading them to string fields.
func WithStrictTypes(strict bool) Option {
	return func(c *Client) { c.strictTypes = strict }
}

// WithEventMode selects how trackers follow execution: polling, push
// events, or automatic. Defaults to track.ModeAuto.
func WithEventMode(mode track.Mode) Option {
	return func(c *Client) { c.eventMode = mode }
}
