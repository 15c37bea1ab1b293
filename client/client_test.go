//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeGandee/invokeai-go-client/field"
	"github.com/CodeGandee/invokeai-go-client/track"
	"github.com/CodeGandee/invokeai-go-client/workflow"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := New(server.URL, opts...)
	require.NoError(t, err)
	return c, server
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	c, err := New("http://invoke.local:9090/")
	require.NoError(t, err)
	assert.Equal(t, "http://invoke.local:9090", c.BaseURL())
	assert.Equal(t, "default", c.QueueID())
}

func TestEnqueueBatch(t *testing.T) {
	var captured struct {
		method         string
		path           string
		idempotencyKey string
		authorization  string
		body           map[string]any
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.idempotencyKey = r.Header.Get("X-Idempotency-Key")
		captured.authorization = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.body))

		json.NewEncoder(w).Encode(map[string]any{
			"batch":       map[string]any{"batch_id": "batch-1"},
			"item_ids":    []int64{7},
			"session_ids": []string{"sess-1"},
			"enqueued":    1,
			"requested":   1,
		})
	})
	c, _ := newTestClient(t, handler, WithAPIKey("secret"))

	result, err := c.EnqueueBatch(context.Background(), &workflow.EnqueueRequest{
		Prepend: true,
		Batch: workflow.Batch{
			Workflow: json.RawMessage(`{"nodes":{}}`),
			Graph:    &workflow.Graph{ID: "workflow-x", Nodes: map[string]map[string]any{}},
			Runs:     2,
			Data:     []any{},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/api/v1/queue/default/enqueue_batch", captured.path)
	assert.NotEmpty(t, captured.idempotencyKey)
	assert.Equal(t, "Bearer secret", captured.authorization)
	assert.Equal(t, true, captured.body["prepend"])

	batch := captured.body["batch"].(map[string]any)
	assert.EqualValues(t, 2, batch["runs"])
	assert.NotNil(t, batch["graph"])

	assert.Equal(t, "batch-1", result.BatchID)
	assert.Equal(t, []int64{7}, result.ItemIDs)
	assert.Equal(t, []string{"sess-1"}, result.SessionIDs)
}

func TestEnqueueBatchRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"batch":       map[string]any{"batch_id": "batch-1"},
			"session_ids": []string{"sess-1"},
		})
	})
	c, _ := newTestClient(t, handler, WithMaxRetries(2))

	result, err := c.EnqueueBatch(context.Background(), &workflow.EnqueueRequest{})
	require.NoError(t, err)
	assert.Equal(t, "batch-1", result.BatchID)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var attempts atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "bad graph", http.StatusBadRequest)
	})
	c, _ := newTestClient(t, handler, WithMaxRetries(3))

	_, err := c.EnqueueBatch(context.Background(), &workflow.EnqueueRequest{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "bad graph")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestCancelBatchIsNeverRetried(t *testing.T) {
	var attempts atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/queue/default/b/batch-1/cancel", r.URL.Path)
		http.Error(w, "flaky", http.StatusInternalServerError)
	})
	c, _ := newTestClient(t, handler, WithMaxRetries(3))

	err := c.CancelBatch(context.Background(), "batch-1")
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestGetSessionNormalizesStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sessions/sess-1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"id": "sess-1", "status": "pending"})
	})
	c, _ := newTestClient(t, handler)

	state, err := c.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, track.StatusEnqueued, state.Status)
}

func TestGetBatchStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/queue/default/b/batch-1/status", r.URL.Path)
		json.NewEncoder(w).Encode(BatchStatus{BatchID: "batch-1", Completed: 3, Total: 4, InProgress: 1})
	})
	c, _ := newTestClient(t, handler)

	status, err := c.GetBatchStatus(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 3, status.Completed)
	assert.Equal(t, 4, status.Total)
}

func TestGetQueueStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/queue/default/status", r.URL.Path)
		w.Write([]byte(`{"queue": {"pending": 2, "in_progress": 1, "total": 3}}`))
	})
	c, _ := newTestClient(t, handler)

	status, err := c.GetQueueStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, status.Queue.Pending)
	assert.Equal(t, 3, status.Queue.Total)
}

func TestListBoards(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/boards/", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("all"))
		json.NewEncoder(w).Encode([]Board{{BoardID: "b1", BoardName: "portraits", ImageCount: 12}})
	})
	c, _ := newTestClient(t, handler)

	boards, err := c.ListBoards(context.Background())
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "portraits", boards[0].BoardName)
}

func TestGetBoardSynthesizesUncategorized(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("the uncategorized board never hits the server")
	}))

	board, err := c.GetBoard(context.Background(), field.BoardNone)
	require.NoError(t, err)
	assert.Equal(t, field.BoardNone, board.BoardID)
	assert.Equal(t, "Uncategorized", board.BoardName)
}

func TestGetBoardNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	c, _ := newTestClient(t, handler)

	_, err := c.GetBoard(context.Background(), "gone")
	require.ErrorIs(t, err, ErrAssetNotFound)
	assert.Contains(t, err.Error(), "gone")
}

func TestCreateBoard(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "my renders", r.URL.Query().Get("board_name"))
		json.NewEncoder(w).Encode(Board{BoardID: "b9", BoardName: "my renders"})
	})
	c, _ := newTestClient(t, handler)

	board, err := c.CreateBoard(context.Background(), "my renders")
	require.NoError(t, err)
	assert.Equal(t, "b9", board.BoardID)
}

func TestListImages(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/boards/b1/image_names", r.URL.Path)
		json.NewEncoder(w).Encode([]string{"new.png", "old.png"})
	})
	c, _ := newTestClient(t, handler)

	names, err := c.ListImages(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, []string{"new.png", "old.png"}, names)
}

func TestGetImageDTO(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/images/i/out.png", r.URL.Path)
		json.NewEncoder(w).Encode(ImageDTO{ImageName: "out.png", Width: 1024, Height: 768})
	})
	c, _ := newTestClient(t, handler)

	dto, err := c.GetImageDTO(context.Background(), "out.png")
	require.NoError(t, err)
	assert.Equal(t, 1024, dto.Width)
}

func TestDownloadImage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/images/i/out.png/full", r.URL.Path)
		w.Write([]byte("PNGBYTES"))
	})
	c, _ := newTestClient(t, handler)

	data, err := c.DownloadImage(context.Background(), "out.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGBYTES"), data)
}

func TestDownloadImageNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	_, err := c.DownloadImage(context.Background(), "missing.png")
	require.ErrorIs(t, err, ErrAssetNotFound)
}

func TestDownloadImages(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/images/i/broken.png/full" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("data:" + r.URL.Path))
	})
	c, _ := newTestClient(t, handler)

	results, err := c.DownloadImages(context.Background(), []string{"a.png", "broken.png", "b.png"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a.png", results[0].ImageName)
	require.NoError(t, results[0].Err)
	assert.Equal(t, []byte("data:/api/v1/images/i/a.png/full"), results[0].Data)

	assert.Equal(t, "broken.png", results[1].ImageName)
	require.ErrorIs(t, results[1].Err, ErrAssetNotFound)

	require.NoError(t, results[2].Err)
	assert.NotEmpty(t, results[2].Data)
}
