package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bitop-dev/dbchat/pkg/auth"
	"github.com/bitop-dev/dbchat/pkg/sse"
)

// Client streams agent responses from the backend.
type Client struct {
	BaseURL    string
	Tokens     auth.TokenSource
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// New creates a Client for the given backend base URL.
//
// The HTTP client carries no overall timeout: the SSE response stays open
// for the duration of the model's answer. Callers bound a hung connection
// through ctx.
func New(baseURL string, tokens auth.TokenSource) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Tokens:     tokens,
		HTTPClient: &http.Client{},
		Logger:     slog.Default(),
	}
}

// SendRequest is the body of one streaming send.
type SendRequest struct {
	Message string `json:"message"`
	ChatID  string `json:"chat_id"`
}

// Stream starts a streaming send. It returns a channel of events and a wait
// function that blocks until the stream is finished and reports the terminal
// error, if any.
//
// Only transport-level failures (unreachable backend, non-2xx before the
// stream starts, broken connection) end the stream with an error; a single
// malformed frame is logged and skipped. The channel is closed when the
// stream ends for any reason, so callers can always range over it. Stopping
// early is done by cancelling ctx; the response body is released on every
// exit path.
func (c *Client) Stream(ctx context.Context, req SendRequest) (<-chan Event, func() error) {
	events := make(chan Event, 64)
	var finalErr error
	done := make(chan struct{})

	go func() {
		defer close(events)
		defer close(done)
		finalErr = c.stream(ctx, req, events)
	}()

	return events, func() error {
		<-done
		return finalErr
	}
}

func (c *Client) stream(ctx context.Context, req SendRequest, events chan<- Event) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("stream: marshal request: %w", err)
	}

	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("stream: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/api/agent/stream", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("stream: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("stream: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	reader := sse.NewReader(resp.Body)
	for {
		frame, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			// A read error after cancellation is the cancellation.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stream: read: %w", err)
		}

		var p Payload
		if err := json.Unmarshal([]byte(frame.Data), &p); err != nil {
			c.Logger.Warn("stream: dropping malformed frame",
				"label", frame.Label, "error", err)
			continue
		}

		select {
		case events <- Event{Tag: resolveTag(frame.Label, p), Payload: p}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Ptr returns a pointer to v. Convenience for building payloads in tests
// and fixtures.
func Ptr[T any](v T) *T { return &v }
