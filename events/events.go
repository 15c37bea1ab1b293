//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

// Package events implements the server's push event channel over a
// websocket connection.
package events

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/CodeGandee/invokeai-go-client/log"
)

// Type tags the kind of a server event.
type Type string

// Event types emitted during queue execution.
const (
	TypeInvocationStarted      Type = "invocation_started"
	TypeInvocationComplete     Type = "invocation_complete"
	TypeInvocationError        Type = "invocation_error"
	TypeSessionComplete        Type = "session_complete"
	TypeSessionCanceled        Type = "session_canceled"
	TypeQueueItemStatusChanged Type = "queue_item_status_changed"
)

// Event is one push notification from the server. The payload stays
// opaque; helpers pick out the common correlation keys. Unknown event
// types pass through untouched.
type Event struct {
	Type    Type           `json:"type"`
	Payload map[string]any `json:"payload"`
}

// SessionID returns the session the event belongs to, or "".
func (e Event) SessionID() string {
	for _, key := range []string{"session_id", "graph_execution_state_id"} {
		if id, ok := e.Payload[key].(string); ok {
			return id
		}
	}
	return ""
}

// BatchID returns the batch the event belongs to, or "".
func (e Event) BatchID() string {
	id, _ := e.Payload["batch_id"].(string)
	return id
}

// NodeID returns the executing node's id as reported by the server,
// or "". This is the prepared id, not necessarily the source id.
func (e Event) NodeID() string {
	if invocation, ok := e.Payload["invocation"].(map[string]any); ok {
		if id, ok := invocation["id"].(string); ok {
			return id
		}
	}
	id, _ := e.Payload["node_id"].(string)
	return id
}

// ErrStreamClosed is returned by operations on a closed stream.
var ErrStreamClosed = errors.New("event stream closed")

// Option configures a stream.
type Option func(*options)

type options struct {
	token  string
	buffer int
	dialer *websocket.Dialer
}

// WithToken authenticates the websocket handshake with a bearer token.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithBuffer sets the event channel buffer size. Defaults to 64.
func WithBuffer(size int) Option {
	return func(o *options) { o.buffer = size }
}

// WithDialer replaces the websocket dialer, mainly for tests.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(o *options) { o.dialer = dialer }
}

// Stream is one live event channel connection. A single reader
// goroutine fans incoming events into Events in receipt order, which
// preserves the server's per-session delivery order.
type Stream struct {
	conn   *websocket.Conn
	events chan Event
	done   chan struct{}

	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// Dial connects the event channel of the server at baseURL.
func Dial(ctx context.Context, baseURL string, opts ...Option) (*Stream, error) {
	o := options{buffer: 64, dialer: websocket.DefaultDialer}
	for _, opt := range opts {
		opt(&o)
	}

	wsURL, err := eventURL(baseURL)
	if err != nil {
		return nil, err
	}
	var header http.Header
	if o.token != "" {
		header = http.Header{"Authorization": []string{"Bearer " + o.token}}
	}
	conn, _, err := o.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial event channel: %w", err)
	}

	s := &Stream{
		conn:   conn,
		events: make(chan Event, o.buffer),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// eventURL converts an http(s) base URL to the ws(s) event endpoint.
func eventURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws/events"
	return u.String(), nil
}

// SubscribeQueue asks the server to deliver events for every session
// of the given queue.
func (s *Stream) SubscribeQueue(queueID string) error {
	return s.send("subscribe_queue", map[string]any{"queue_id": queueID})
}

// UnsubscribeQueue stops queue event delivery.
func (s *Stream) UnsubscribeQueue(queueID string) error {
	return s.send("unsubscribe_queue", map[string]any{"queue_id": queueID})
}

// SubscribeSession asks the server to deliver events for one session.
func (s *Stream) SubscribeSession(sessionID string) error {
	return s.send("subscribe_session", map[string]any{"session_id": sessionID})
}

func (s *Stream) send(eventType string, payload map[string]any) error {
	if err := s.Err(); err != nil {
		return err
	}
	frame := map[string]any{"type": eventType, "payload": payload}
	if err := s.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("send %s: %w", eventType, err)
	}
	return nil
}

// Events returns the incoming event channel. It is closed when the
// stream ends; check Err for the cause.
func (s *Stream) Events() <-chan Event { return s.events }

// Err returns the terminal stream error, if any. A closed stream
// reports ErrStreamClosed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Stream) readLoop() {
	defer close(s.events)
	for {
		var event Event
		if err := s.conn.ReadJSON(&event); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.setErr(ErrStreamClosed)
			} else {
				s.setErr(err)
			}
			return
		}
		if event.Type == "" {
			log.Warnf("event channel: frame without type, dropping")
			continue
		}
		// The send must never outlive Close: with a full buffer and no
		// consumer left it would block forever.
		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}

// Close tears the connection down. Pending events already read remain
// readable until the channel drains.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.setErr(ErrStreamClosed)
		close(s.done)
		closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteMessage(websocket.CloseMessage, closing)
		err = s.conn.Close()
	})
	return err
}
