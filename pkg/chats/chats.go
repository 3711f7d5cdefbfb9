// Package chats is the client for the backend's chat persistence endpoints:
// create, list, get and delete of chat records over HTTP/JSON with bearer
// auth. It is never called while a stream for the same chat is open.
package chats

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bitop-dev/dbchat/pkg/auth"
)

// ErrNotFound reports a chat that does not exist or is owned by another user.
var ErrNotFound = errors.New("chats: not found")

// Chat is one chat record as the backend returns it.
type Chat struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Title     *string    `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LatestSQL *string    `json:"latest_sql"`

	ContextUsedChars int        `json:"context_used_chars"`
	ContextCapChars  int        `json:"context_cap_chars"`
	ContextUsagePct  int        `json:"context_usage_pct"`
	ContextUpdatedAt *time.Time `json:"context_updated_at"`
}

// Client calls the chat endpoints.
type Client struct {
	BaseURL    string
	Tokens     auth.TokenSource
	HTTPClient *http.Client
}

// New creates a Client for the given backend base URL.
func New(baseURL string, tokens auth.TokenSource) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Tokens:     tokens,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("chats: marshal body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return fmt.Errorf("chats: build request: %w", err)
	}
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("chats: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("chats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("chats: %s %s: HTTP %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("chats: decode response: %w", err)
	}
	return nil
}

// Create makes a new chat for the authenticated user.
func (c *Client) Create(ctx context.Context) (*Chat, error) {
	var chat Chat
	if err := c.do(ctx, http.MethodPost, "/api/chats/new", struct{}{}, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// List returns the user's chats, most recently updated first.
func (c *Client) List(ctx context.Context) ([]Chat, error) {
	var out struct {
		Chats []Chat `json:"chats"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chats", nil, &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

// Get returns one chat including its latest SQL.
func (c *Client) Get(ctx context.Context, id string) (*Chat, error) {
	var chat Chat
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+id, nil, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// Delete removes a chat and its SQL versions.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/chats/"+id, nil, nil)
}

// Refresh fetches the chat list and the active chat's detail in one call,
// concurrently. activeID may be empty, in which case only the list is
// fetched. Used after a rollover to rebuild the sidebar and the SQL pane.
func (c *Client) Refresh(ctx context.Context, activeID string) ([]Chat, *Chat, error) {
	var (
		list   []Chat
		active *Chat
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = c.List(ctx)
		return err
	})
	if activeID != "" {
		g.Go(func() error {
			var err error
			active, err = c.Get(ctx, activeID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return list, active, nil
}
