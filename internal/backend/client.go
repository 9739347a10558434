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
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"villoscreenplay/internal/domain"
)

// Client is a minimal HTTP client for the backend API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing
// slash; it will be normalized. A zero timeout means 10s.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// InsecureSkipVerify disables TLS certificate checks, for self-signed
// development servers.
func (c *Client) InsecureSkipVerify() {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	c.client.Transport = tr
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method, Path string
	Code         int
	Message      string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("server %s %s: %d", e.Method, e.Path, e.Code)
}

func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Method: method, Path: u.Path, Code: resp.StatusCode}
		var eb struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&eb) == nil {
			se.Message = eb.Error
		}
		return se
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Login requests a token for subject and stores it on the client.
func (c *Client) Login(ctx context.Context, subject string) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/token", tokenRequest{Subject: subject}, &out); err != nil {
		return "", err
	}
	c.Token = out.Token
	return out.Token, nil
}

// ListProjects returns the stored projects.
func (c *Client) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	var list []ProjectSummary
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetProject fetches one stored project.
func (c *Client) GetProject(ctx context.Context, id string) (*ProjectRecord, error) {
	var rec ProjectRecord
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutProject uploads p under id. An empty name uses the cover title.
func (c *Client) PutProject(ctx context.Context, id, name string, p domain.Project) (ProjectSummary, error) {
	if p.Screenplay == nil {
		p.Screenplay = []domain.Element{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return ProjectSummary{}, err
	}
	var out ProjectSummary
	err = c.do(ctx, http.MethodPut, "/api/projects/"+url.PathEscape(id), putRequest{Name: name, Project: raw}, &out)
	return out, err
}

// DeleteProject removes a stored project.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil, nil)
}

// Paginate asks the server for the pagination summary of p.
func (c *Client) Paginate(ctx context.Context, p domain.Project) (Summary, error) {
	if p.Screenplay == nil {
		p.Screenplay = []domain.Element{}
	}
	var out Summary
	err := c.do(ctx, http.MethodPost, "/api/paginate", p, &out)
	return out, err
}
