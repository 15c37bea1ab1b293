//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

// Package track follows a submitted batch through queue execution and
// maps completed output nodes to the assets they produced.
package track

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/CodeGandee/invokeai-go-client/events"
	"github.com/CodeGandee/invokeai-go-client/log"
	"github.com/CodeGandee/invokeai-go-client/workflow"
)

var (
	// ErrExecutionFailed is returned when the server reports a node
	// error for a tracked session.
	ErrExecutionFailed = errors.New("workflow execution failed")
	// ErrTimeout is returned when waiting exceeds the caller's
	// deadline. The server-side job is not canceled implicitly.
	ErrTimeout = errors.New("wait for execution timed out")
	// ErrCancelled is returned once the server acknowledges a cancel.
	ErrCancelled = errors.New("execution cancelled")
)

// Status is the lifecycle state of one queue item.
type Status string

// Queue item lifecycle: enqueued items go in_progress, then settle in
// exactly one terminal state.
const (
	StatusEnqueued   Status = "enqueued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// ParseStatus normalizes a server-reported status string.
func ParseStatus(s string) Status {
	switch s {
	case "pending", "enqueued":
		return StatusEnqueued
	case "in_progress", "processing":
		return StatusInProgress
	case "completed":
		return StatusCompleted
	case "failed", "error":
		return StatusFailed
	case "canceled", "cancelled":
		return StatusCanceled
	}
	return Status(s)
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// SessionState is the server's view of one session, as returned by the
// session endpoint.
type SessionState struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	// Results holds per-node result objects keyed by the executed
	// (prepared) node id.
	Results map[string]map[string]any `json:"results"`
	// PreparedSourceMapping maps prepared node ids back to the source
	// node ids of the submitted graph. The mapping is authoritative.
	PreparedSourceMapping map[string]string `json:"prepared_source_mapping"`
	ErrorNodeID           string            `json:"error_node_id,omitempty"`
	ErrorType             string            `json:"error_type,omitempty"`
	ErrorMessage          string            `json:"error_message,omitempty"`
}

// SessionSource is the pull side of tracking: it reads session state
// and cancels batches. Implementations must be safe for concurrent
// use.
type SessionSource interface {
	GetSession(ctx context.Context, sessionID string) (*SessionState, error)
	CancelBatch(ctx context.Context, batchID string) error
}

// EventSource is the push side of tracking.
type EventSource interface {
	SubscribeSession(sessionID string) error
	Events() <-chan events.Event
}

// Mode selects how the tracker drives execution to completion.
type Mode string

// Drive modes.
const (
	// ModePolling queries the session endpoint with exponential
	// backoff between the configured floor and ceiling.
	ModePolling Mode = "polling"
	// ModeEvents consumes the push event channel.
	ModeEvents Mode = "events"
	// ModeAuto uses events when an event source is attached and falls
	// back to polling otherwise.
	ModeAuto Mode = "auto"
)

// Callbacks receive execution progress. Events for a single session
// arrive in server delivery order; events across sessions are
// unordered. All callbacks are optional.
type Callbacks struct {
	OnStatusChange       func(sessionID string, status Status)
	OnInvocationStarted  func(sessionID, nodeID string)
	OnInvocationComplete func(sessionID, nodeID string)
	OnInvocationError    func(sessionID, nodeID, message string)
}

// Option configures a tracker.
type Option func(*Tracker)

// WithMode selects the drive mode. Defaults to ModeAuto.
func WithMode(mode Mode) Option {
	return func(t *Tracker) { t.mode = mode }
}

// WithEventSource attaches a push event channel.
func WithEventSource(source EventSource) Option {
	return func(t *Tracker) { t.eventSource = source }
}

// WithOwnedEventSource attaches a push event channel that the tracker
// closes once waiting finishes, when the source implements io.Closer.
func WithOwnedEventSource(source EventSource) Option {
	return func(t *Tracker) {
		t.eventSource = source
		t.ownsEventSource = true
	}
}

// WithPollInterval bounds the polling backoff. Defaults to 500ms
// initial and 5s maximum.
func WithPollInterval(initial, max time.Duration) Option {
	return func(t *Tracker) {
		t.pollInitial = initial
		t.pollMax = max
	}
}

// WithCallbacks registers progress callbacks.
func WithCallbacks(callbacks Callbacks) Option {
	return func(t *Tracker) { t.callbacks = callbacks }
}

// Tracker correlates one submitted batch with queue and session
// updates until every session settles.
type Tracker struct {
	submission      *workflow.Submission
	source          SessionSource
	eventSource     EventSource
	ownsEventSource bool
	mode            Mode
	pollInitial     time.Duration
	pollMax         time.Duration
	callbacks       Callbacks

	canceled atomic.Bool

	mu     sync.Mutex
	states map[string]*SessionState
	status map[string]Status
}

// New builds a tracker for a submission.
func New(submission *workflow.Submission, source SessionSource, opts ...Option) *Tracker {
	t := &Tracker{
		submission:  submission,
		source:      source,
		mode:        ModeAuto,
		pollInitial: 500 * time.Millisecond,
		pollMax:     5 * time.Second,
		states:      make(map[string]*SessionState),
		status:      make(map[string]Status),
	}
	for _, opt := range opts {
		opt(t)
	}
	for _, id := range submission.SessionIDs {
		t.status[id] = StatusEnqueued
	}
	return t
}

// Submission returns the tracked submission.
func (t *Tracker) Submission() *workflow.Submission { return t.submission }

// Wait drives all sessions of the batch to a terminal state. It
// returns the final session states, or the first terminal error:
// ErrCancelled when the batch was canceled, ErrTimeout when ctx's
// deadline passed, ErrExecutionFailed when any session failed.
func (t *Tracker) Wait(ctx context.Context) ([]*SessionState, error) {
	mode := t.mode
	if mode == ModeAuto {
		if t.eventSource != nil {
			mode = ModeEvents
		} else {
			mode = ModePolling
		}
	}
	if mode == ModeEvents && t.eventSource == nil {
		return nil, fmt.Errorf("event mode requested but no event source attached")
	}
	if t.ownsEventSource {
		if closer, ok := t.eventSource.(io.Closer); ok {
			defer closer.Close()
		}
	}

	var err error
	switch mode {
	case ModeEvents:
		err = t.waitEvents(ctx)
	default:
		err = t.waitPolling(ctx)
	}
	if err != nil {
		return nil, err
	}
	return t.finalStates()
}

// WaitTimeout is Wait bounded by a duration. On expiry it resolves to
// ErrTimeout and leaves the server-side job running.
func (t *Tracker) WaitTimeout(ctx context.Context, timeout time.Duration) ([]*SessionState, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return t.Wait(ctx)
}

// Cancel asks the server to cancel the batch. The tracker resolves to
// ErrCancelled once the cancel is acknowledged; in-flight polling and
// subscriptions stop promptly.
func (t *Tracker) Cancel(ctx context.Context) error {
	if err := t.source.CancelBatch(ctx, t.submission.BatchID); err != nil {
		return err
	}
	t.canceled.Store(true)
	return nil
}

func (t *Tracker) mapErr(ctx context.Context) error {
	if t.canceled.Load() {
		return ErrCancelled
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
	return nil
}

// finalStates validates that every session settled and surfaces the
// first failure.
func (t *Tracker) finalStates() ([]*SessionState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	states := make([]*SessionState, 0, len(t.submission.SessionIDs))
	for _, id := range t.submission.SessionIDs {
		state, ok := t.states[id]
		if !ok {
			return nil, fmt.Errorf("session %s never settled", id)
		}
		switch state.Status {
		case StatusFailed:
			return nil, fmt.Errorf("%w: session %s node %s: %s",
				ErrExecutionFailed, id, state.ErrorNodeID, state.ErrorMessage)
		case StatusCanceled:
			return nil, fmt.Errorf("%w: session %s", ErrCancelled, id)
		}
		states = append(states, state)
	}
	return states, nil
}

func (t *Tracker) setStatus(sessionID string, status Status) {
	t.mu.Lock()
	previous := t.status[sessionID]
	t.status[sessionID] = status
	t.mu.Unlock()
	if previous != status && t.callbacks.OnStatusChange != nil {
		t.callbacks.OnStatusChange(sessionID, status)
	}
}

func (t *Tracker) storeState(state *SessionState) {
	t.mu.Lock()
	t.states[state.ID] = state
	t.mu.Unlock()
	t.setStatus(state.ID, state.Status)
}

var errStillRunning = errors.New("session still running")

// waitPolling polls every session to a terminal state with exponential
// backoff between the configured floor and ceiling.
func (t *Tracker) waitPolling(ctx context.Context) error {
	for _, sessionID := range t.submission.SessionIDs {
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = t.pollInitial
		policy.MaxInterval = t.pollMax

		operation := func() (*SessionState, error) {
			if t.canceled.Load() {
				return nil, backoff.Permanent(ErrCancelled)
			}
			state, err := t.source.GetSession(ctx, sessionID)
			if err != nil {
				// Transient read errors ride the same backoff.
				log.Debugf("tracker: poll session %s: %v", sessionID, err)
				return nil, err
			}
			t.setStatus(sessionID, state.Status)
			if !state.Status.Terminal() {
				return nil, errStillRunning
			}
			return state, nil
		}

		state, err := backoff.Retry(ctx, operation, backoff.WithBackOff(policy))
		if err != nil {
			if mapped := t.mapErr(ctx); mapped != nil {
				return mapped
			}
			if errors.Is(err, ErrCancelled) {
				return ErrCancelled
			}
			return fmt.Errorf("poll session %s: %w", sessionID, err)
		}
		t.storeState(state)
	}
	return nil
}

// waitEvents consumes the push channel until every session settles.
// Terminal session events trigger one final session fetch so results
// and the prepared source mapping come from the authoritative record.
func (t *Tracker) waitEvents(ctx context.Context) error {
	pending := make(map[string]bool, len(t.submission.SessionIDs))
	for _, id := range t.submission.SessionIDs {
		pending[id] = true
		if err := t.eventSource.SubscribeSession(id); err != nil {
			return fmt.Errorf("subscribe session %s: %w", id, err)
		}
	}

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			if mapped := t.mapErr(ctx); mapped != nil {
				return mapped
			}
			return ctx.Err()
		case event, ok := <-t.eventSource.Events():
			if !ok {
				return fmt.Errorf("event channel closed with %d sessions pending", len(pending))
			}
			sessionID := event.SessionID()
			if sessionID == "" || !pendingOrKnown(pending, t.submission.SessionIDs, sessionID) {
				continue
			}
			if err := t.handleEvent(ctx, event, pending); err != nil {
				return err
			}
			if t.canceled.Load() && len(pending) > 0 {
				// Cancel acknowledged server-side; remaining sessions
				// resolve as canceled.
				return ErrCancelled
			}
		}
	}
	return nil
}

func pendingOrKnown(pending map[string]bool, all []string, sessionID string) bool {
	if pending[sessionID] {
		return true
	}
	for _, id := range all {
		if id == sessionID {
			return true
		}
	}
	return false
}

func (t *Tracker) handleEvent(ctx context.Context, event events.Event, pending map[string]bool) error {
	sessionID := event.SessionID()
	switch event.Type {
	case events.TypeInvocationStarted:
		t.setStatus(sessionID, StatusInProgress)
		if t.callbacks.OnInvocationStarted != nil {
			t.callbacks.OnInvocationStarted(sessionID, t.sourceNodeID(event))
		}
	case events.TypeInvocationComplete:
		if t.callbacks.OnInvocationComplete != nil {
			t.callbacks.OnInvocationComplete(sessionID, t.sourceNodeID(event))
		}
	case events.TypeInvocationError:
		message, _ := event.Payload["error_message"].(string)
		if t.callbacks.OnInvocationError != nil {
			t.callbacks.OnInvocationError(sessionID, t.sourceNodeID(event), message)
		}
	case events.TypeSessionComplete:
		if err := t.settleSession(ctx, sessionID); err != nil {
			return err
		}
		delete(pending, sessionID)
	case events.TypeSessionCanceled:
		t.storeState(&SessionState{ID: sessionID, Status: StatusCanceled})
		delete(pending, sessionID)
		return ErrCancelled
	case events.TypeQueueItemStatusChanged:
		if status, ok := event.Payload["status"].(string); ok {
			parsed := ParseStatus(status)
			t.setStatus(sessionID, parsed)
			if parsed.Terminal() {
				if err := t.settleSession(ctx, sessionID); err != nil {
					return err
				}
				delete(pending, sessionID)
			}
		}
	}
	return nil
}

// sourceNodeID translates a server-reported node id back to the
// original node id. The event payload's source id wins; otherwise the
// session's prepared source mapping is consulted.
func (t *Tracker) sourceNodeID(event events.Event) string {
	if id, ok := event.Payload["invocation_source_id"].(string); ok && id != "" {
		return id
	}
	nodeID := event.NodeID()
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.states[event.SessionID()]; ok && state.PreparedSourceMapping != nil {
		if source, ok := state.PreparedSourceMapping[nodeID]; ok {
			return source
		}
	}
	return nodeID
}

func (t *Tracker) settleSession(ctx context.Context, sessionID string) error {
	state, err := t.source.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("fetch settled session %s: %w", sessionID, err)
	}
	t.storeState(state)
	return nil
}
