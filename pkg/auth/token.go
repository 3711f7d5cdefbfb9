// Package auth supplies bearer tokens to the HTTP clients.
//
// Tokens are modeled as an explicit TokenSource passed to each client rather
// than module-level state, so independent sessions can carry independent
// credentials.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TokenSource yields the bearer token to attach to an outgoing request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Static is a TokenSource that always returns the same token.
type Static string

func (s Static) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("auth: empty token")
	}
	return string(s), nil
}

// RefreshInterval is how long a fetched token is served before it is
// re-fetched.
const RefreshInterval = 5 * time.Minute

// Refreshing fetches a token lazily and re-fetches it once the refresh
// interval has elapsed. Safe for concurrent use.
type Refreshing struct {
	fetch    func(ctx context.Context) (string, error)
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	token     string
	fetchedAt time.Time
}

// NewRefreshing creates a Refreshing source backed by fetch.
func NewRefreshing(fetch func(ctx context.Context) (string, error)) *Refreshing {
	return &Refreshing{fetch: fetch, interval: RefreshInterval, now: time.Now}
}

// Token returns the cached token, fetching a fresh one when none is cached
// or the cached one is older than the refresh interval. A refresh failure
// while a previous token is still cached returns the stale token; the
// server rejecting it surfaces as a normal request error.
func (r *Refreshing) Token(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fresh := r.token != "" && r.now().Sub(r.fetchedAt) < r.interval
	if fresh {
		return r.token, nil
	}

	tok, err := r.fetch(ctx)
	if err != nil {
		if r.token != "" {
			return r.token, nil
		}
		return "", fmt.Errorf("auth: fetch token: %w", err)
	}
	r.token = tok
	r.fetchedAt = r.now()
	return tok, nil
}
