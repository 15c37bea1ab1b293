//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/CodeGandee/invokeai-go-client/field"
)

// Board is one server-side image board.
type Board struct {
	BoardID        string `json:"board_id"`
	BoardName      string `json:"board_name"`
	ImageCount     int    `json:"image_count"`
	CoverImageName string `json:"cover_image_name,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

// ImageDTO describes one server-side image.
type ImageDTO struct {
	ImageName string `json:"image_name"`
	BoardID   string `json:"board_id,omitempty"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	CreatedAt string `json:"created_at,omitempty"`
	StarredAt string `json:"starred_at,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	NodeID    string `json:"node_id,omitempty"`
}

// ListBoards fetches every board.
func (c *Client) ListBoards(ctx context.Context) ([]Board, error) {
	var boards []Board
	if err := c.getJSON(ctx, "/api/v1/boards/?all=true", &boards); err != nil {
		return nil, err
	}
	return boards, nil
}

// GetBoard fetches one board. The uncategorized pseudo-board
// (field.BoardNone) is synthesized client-side; the server has no
// record for it.
func (c *Client) GetBoard(ctx context.Context, boardID string) (*Board, error) {
	if boardID == field.BoardNone {
		return &Board{BoardID: field.BoardNone, BoardName: "Uncategorized"}, nil
	}
	var board Board
	path := fmt.Sprintf("/api/v1/boards/%s", url.PathEscape(boardID))
	if err := c.getJSON(ctx, path, &board); err != nil {
		return nil, notFoundAs(err, fmt.Sprintf("board %q", boardID))
	}
	return &board, nil
}

// CreateBoard creates a board with the given name.
func (c *Client) CreateBoard(ctx context.Context, name string) (*Board, error) {
	var board Board
	path := fmt.Sprintf("/api/v1/boards/?board_name=%s", url.QueryEscape(name))
	if err := c.postJSON(ctx, path, nil, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

// ListImages fetches the image names of one board, newest first.
func (c *Client) ListImages(ctx context.Context, boardID string) ([]string, error) {
	var names []string
	path := fmt.Sprintf("/api/v1/boards/%s/image_names", url.PathEscape(boardID))
	if err := c.getJSON(ctx, path, &names); err != nil {
		return nil, notFoundAs(err, fmt.Sprintf("board %q", boardID))
	}
	return names, nil
}

// GetImageDTO fetches the metadata record of one image.
func (c *Client) GetImageDTO(ctx context.Context, imageName string) (*ImageDTO, error) {
	var dto ImageDTO
	path := fmt.Sprintf("/api/v1/images/i/%s", url.PathEscape(imageName))
	if err := c.getJSON(ctx, path, &dto); err != nil {
		return nil, notFoundAs(err, fmt.Sprintf("image %q", imageName))
	}
	return &dto, nil
}

// DownloadImage fetches the full-resolution bytes of one image.
func (c *Client) DownloadImage(ctx context.Context, imageName string) ([]byte, error) {
	path := fmt.Sprintf("/api/v1/images/i/%s/full", url.PathEscape(imageName))
	data, err := c.getBytes(ctx, path)
	if err != nil {
		return nil, notFoundAs(err, fmt.Sprintf("image %q", imageName))
	}
	return data, nil
}

// DownloadResult pairs one requested image with its bytes or error.
type DownloadResult struct {
	ImageName string
	Data      []byte
	Err       error
}

// DownloadImages fetches several images concurrently on a bounded
// worker pool. Results are returned in the order requested; individual
// failures are reported per image.
func (c *Client) DownloadImages(ctx context.Context, imageNames []string, workers int) ([]DownloadResult, error) {
	if workers <= 0 {
		workers = 4
	}
	results := make([]DownloadResult, len(imageNames))

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(workers, func(args any) {
		defer wg.Done()
		idx := args.(int)
		name := imageNames[idx]
		data, err := c.DownloadImage(ctx, name)
		results[idx] = DownloadResult{ImageName: name, Data: data, Err: err}
	})
	if err != nil {
		return nil, fmt.Errorf("create download pool: %w", err)
	}
	defer pool.Release()

	for i := range imageNames {
		wg.Add(1)
		if err := pool.Invoke(i); err != nil {
			wg.Done()
			results[i] = DownloadResult{ImageName: imageNames[i], Err: err}
		}
	}
	wg.Wait()
	return results, nil
}

// notFoundAs converts a 404 into ErrAssetNotFound with context.
func notFoundAs(err error, what string) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
		return fmt.Errorf("%w: %s", ErrAssetNotFound, what)
	}
	return err
}
