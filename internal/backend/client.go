/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"notesboard/internal/domain"
	"notesboard/internal/sceneio"
)

// Client is a minimal HTTP client for a running board server.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new board server client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("server %s %s: %s %s", method, u.Path, resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// Health checks the server liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Scene fetches the server's current scene.
func (c *Client) Scene(ctx context.Context) (domain.Scene, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/scene", nil)
	if err != nil {
		return domain.Scene{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	return sceneio.Decode(io.LimitReader(resp.Body, sceneio.MaxFetchBytes))
}

// ReplaceScene uploads scene, replacing the server's board.
func (c *Client) ReplaceScene(ctx context.Context, scene domain.Scene) error {
	data, err := sceneio.Export(scene)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPut, "/api/scene", data)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Boards lists the boards stored behind the server.
func (c *Client) Boards(ctx context.Context) ([]BoardInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/boards", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	var list []BoardInfo
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode boards: %w", err)
	}
	return list, nil
}
