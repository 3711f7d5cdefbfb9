// Package supabase runs SQL against a Supabase project through the
// Management API. Execution happens only on an explicit user action, never
// from the streaming path.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.supabase.com"

// Client calls the Supabase Management API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a Client. baseURL is overridable for tests; empty selects the
// public Management API.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Result is the outcome of one execution. A SQL-level failure is reported in
// Success/Message, not as an error; errors are reserved for transport
// problems.
type Result struct {
	Success bool
	Message string
	Data    json.RawMessage
}

// ExecuteSQL runs query on the given project using the user's personal
// access token.
func (c *Client) ExecuteSQL(ctx context.Context, projectRef, accessToken, query string) (*Result, error) {
	if projectRef == "" || accessToken == "" {
		return nil, fmt.Errorf("supabase: projectRef and accessToken are required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("supabase: query is required")
	}

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("supabase: marshal query: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/sql", c.BaseURL, projectRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("supabase: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase: %w", err)
	}
	defer resp.Body.Close()

	var data json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		data = nil
	}

	if resp.StatusCode >= 400 {
		return &Result{
			Success: false,
			Message: errorMessage(data, resp),
			Data:    data,
		}, nil
	}

	return &Result{
		Success: true,
		Message: "SQL executed successfully!",
		Data:    data,
	}, nil
}

// errorMessage prefers the API's own message field over the raw status.
func errorMessage(data json.RawMessage, resp *http.Response) string {
	var body struct {
		Message string `json:"message"`
	}
	if data != nil && json.Unmarshal(data, &body) == nil && body.Message != "" {
		return body.Message
	}
	return fmt.Sprintf("Error %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
