//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{}

// echoEventServer upgrades the connection, records the handshake
// request, and replays each subscription frame back as a fake event.
func echoEventServer(t *testing.T, onRequest func(*http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if onRequest != nil {
			onRequest(r)
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			payload, _ := frame["payload"].(map[string]any)
			response := map[string]any{
				"type":    "invocation_started",
				"payload": payload,
			}
			if err := conn.WriteJSON(response); err != nil {
				return
			}
		}
	}))
}

func TestEventURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://invoke.local:9090", want: "ws://invoke.local:9090/ws/events"},
		{in: "https://invoke.local", want: "wss://invoke.local/ws/events"},
		{in: "ws://invoke.local", want: "ws://invoke.local/ws/events"},
		{in: "ftp://invoke.local", wantErr: true},
	}
	for _, tt := range tests {
		got, err := eventURL(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestDialAndSubscribe(t *testing.T) {
	var captured *http.Request
	server := echoEventServer(t, func(r *http.Request) { captured = r })
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := Dial(ctx, server.URL, WithToken("secret"))
	require.NoError(t, err)
	defer stream.Close()

	require.NotNil(t, captured)
	assert.Equal(t, "/ws/events", captured.URL.Path)
	assert.Equal(t, "Bearer secret", captured.Header.Get("Authorization"))

	require.NoError(t, stream.SubscribeSession("sess-1"))
	select {
	case event := <-stream.Events():
		assert.Equal(t, TypeInvocationStarted, event.Type)
		assert.Equal(t, "sess-1", event.SessionID())
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}

	require.NoError(t, stream.SubscribeQueue("default"))
	select {
	case event := <-stream.Events():
		assert.Equal(t, "default", event.Payload["queue_id"])
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
}

func TestStreamCloseEndsChannel(t *testing.T) {
	server := echoEventServer(t, nil)
	defer server.Close()

	stream, err := Dial(context.Background(), server.URL)
	require.NoError(t, err)

	require.NoError(t, stream.Close())
	select {
	case _, ok := <-stream.Events():
		assert.False(t, ok, "channel closes after the stream ends")
	case <-time.After(5 * time.Second):
		t.Fatal("channel never closed")
	}
	assert.ErrorIs(t, stream.Err(), ErrStreamClosed)

	require.ErrorIs(t, stream.SubscribeSession("sess-1"), ErrStreamClosed)
}

func TestServerCloseEndsChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		_ = conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
	}))
	defer server.Close()

	stream, err := Dial(context.Background(), server.URL)
	require.NoError(t, err)
	defer stream.Close()

	select {
	case _, ok := <-stream.Events():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("channel never closed")
	}
	assert.ErrorIs(t, stream.Err(), ErrStreamClosed)
}

func TestCloseStopsReaderOnFullBuffer(t *testing.T) {
	// A server that floods events faster than anyone drains them.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		frame := map[string]any{
			"type":    "invocation_started",
			"payload": map[string]any{"session_id": "sess-1"},
		}
		for {
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	stream, err := Dial(context.Background(), server.URL, WithBuffer(1))
	require.NoError(t, err)

	// Let the reader fill the buffer and block on the next send.
	require.Eventually(t, func() bool { return len(stream.Events()) == 1 },
		5*time.Second, time.Millisecond)

	require.NoError(t, stream.Close())
	require.Eventually(t, func() bool { return readLoopCount() == 0 },
		5*time.Second, 5*time.Millisecond,
		"the reader must exit without the channel being drained")
}

func readLoopCount() int {
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	return strings.Count(string(buf[:n]), "(*Stream).readLoop")
}

func TestDialRejectsUnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Dial(ctx, "http://127.0.0.1:1")
	require.Error(t, err)
}

func TestEventHelpers(t *testing.T) {
	event := Event{Type: TypeInvocationComplete, Payload: map[string]any{
		"graph_execution_state_id": "sess-9",
		"batch_id":                 "batch-3",
		"invocation":               map[string]any{"id": "node-1"},
	}}
	assert.Equal(t, "sess-9", event.SessionID())
	assert.Equal(t, "batch-3", event.BatchID())
	assert.Equal(t, "node-1", event.NodeID())

	bare := Event{Payload: map[string]any{"node_id": "plain"}}
	assert.Equal(t, "plain", bare.NodeID())
	assert.Empty(t, bare.SessionID())
}
