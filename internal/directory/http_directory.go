// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package directory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// HTTPDirectory resolves users and conversations against the business
// backend's REST API:
//
//	GET {base}/api/v1/users/by-external-id/{externalID}
//	GET {base}/api/v1/conversations/{id}
//
// Both endpoints return the JSON shapes of User and Conversation, or
// 404 when the record does not exist.
type HTTPDirectory struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPDirectory creates a directory client for the given backend URL.
// A zero timeout defaults to 5 seconds.
func NewHTTPDirectory(baseURL string, timeout time.Duration) *HTTPDirectory {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPDirectory{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ResolveUserByExternalID implements Directory.
func (d *HTTPDirectory) ResolveUserByExternalID(ctx context.Context, externalID string) (*User, error) {
	endpoint := "/api/v1/users/by-external-id/" + url.PathEscape(externalID)

	var user User
	if err := d.getJSON(ctx, endpoint, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ResolveConversation implements Directory.
func (d *HTTPDirectory) ResolveConversation(ctx context.Context, id int64) (*Conversation, error) {
	endpoint := "/api/v1/conversations/" + strconv.FormatInt(id, 10)

	var conv Conversation
	if err := d.getJSON(ctx, endpoint, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// getJSON performs a GET request and decodes the response body into out.
func (d *HTTPDirectory) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("directory request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("directory request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNotFound:
		return ErrNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("directory returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode directory response: %w", err)
	}
	return nil
}
