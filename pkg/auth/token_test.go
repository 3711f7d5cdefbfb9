package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStatic(t *testing.T) {
	tok, err := Static("abc").Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "abc" {
		t.Errorf("token = %q", tok)
	}

	if _, err := Static("").Token(context.Background()); err == nil {
		t.Error("empty static token should error")
	}
}

func TestRefreshing_CachesWithinInterval(t *testing.T) {
	calls := 0
	r := NewRefreshing(func(ctx context.Context) (string, error) {
		calls++
		return "tok-1", nil
	})
	clock := time.Now()
	r.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		tok, err := r.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if tok != "tok-1" {
			t.Errorf("token = %q", tok)
		}
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}
}

func TestRefreshing_RefetchesAfterInterval(t *testing.T) {
	calls := 0
	r := NewRefreshing(func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "tok-1", nil
		}
		return "tok-2", nil
	})
	clock := time.Now()
	r.now = func() time.Time { return clock }

	if tok, _ := r.Token(context.Background()); tok != "tok-1" {
		t.Fatalf("token = %q", tok)
	}

	clock = clock.Add(RefreshInterval + time.Second)
	tok, err := r.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "tok-2" {
		t.Errorf("token = %q, want tok-2", tok)
	}
	if calls != 2 {
		t.Errorf("fetch calls = %d, want 2", calls)
	}
}

func TestRefreshing_StaleTokenOnFetchFailure(t *testing.T) {
	calls := 0
	r := NewRefreshing(func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "tok-1", nil
		}
		return "", errors.New("upstream down")
	})
	clock := time.Now()
	r.now = func() time.Time { return clock }

	if _, err := r.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}

	clock = clock.Add(RefreshInterval + time.Second)
	tok, err := r.Token(context.Background())
	if err != nil {
		t.Fatalf("Token after failed refresh: %v", err)
	}
	if tok != "tok-1" {
		t.Errorf("token = %q, want stale tok-1", tok)
	}
}

func TestRefreshing_FirstFetchFailureErrors(t *testing.T) {
	r := NewRefreshing(func(ctx context.Context) (string, error) {
		return "", errors.New("upstream down")
	})
	if _, err := r.Token(context.Background()); err == nil {
		t.Error("want error when no token has ever been fetched")
	}
}
