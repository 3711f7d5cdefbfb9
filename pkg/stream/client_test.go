package stream_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bitop-dev/dbchat/pkg/auth"
	"github.com/bitop-dev/dbchat/pkg/stream"
)

func sseServer(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/agent/stream" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		var req stream.SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, payload)
	}))
}

func collect(t *testing.T, c *stream.Client) ([]stream.Event, error) {
	t.Helper()
	events, wait := c.Stream(context.Background(), stream.SendRequest{
		Message: "add a users table",
		ChatID:  "chat-1",
	})
	var got []stream.Event
	for ev := range events {
		got = append(got, ev)
	}
	return got, wait()
}

func TestStream_MultiplexedEvents(t *testing.T) {
	srv := sseServer(t,
		"event: context\ndata: {\"chatId\":\"chat-1\",\"usedChars\":100,\"capChars\":40000,\"usagePct\":0}\n\n"+
			"event: tool\ndata: {\"name\":\"get_compact_sql_context\",\"status\":\"start\"}\n\n"+
			"event: tool\ndata: {\"name\":\"get_compact_sql_context\",\"status\":\"done\"}\n\n"+
			"event: sql\ndata: {\"sql\":\"SELECT 1;\"}\n\n"+
			"event: delta\ndata: {\"textDelta\":\"Creating\",\"fullText\":\"Creating\"}\n\n"+
			"event: done\ndata: {\"finalText\":\"Created.\",\"finalSql\":\"SELECT 1;\"}\n\n")
	defer srv.Close()

	got, err := collect(t, stream.New(srv.URL, auth.Static("test-token")))
	if err != nil {
		t.Fatalf("wait: %v", err)
	}

	wantTags := []stream.EventTag{
		stream.TagContext, stream.TagTool, stream.TagTool,
		stream.TagSQL, stream.TagDelta, stream.TagDone,
	}
	if len(got) != len(wantTags) {
		t.Fatalf("got %d events, want %d", len(got), len(wantTags))
	}
	for i, w := range wantTags {
		if got[i].Tag != w {
			t.Errorf("event[%d].Tag = %q, want %q", i, got[i].Tag, w)
		}
	}
	if sql := got[3].Payload.SQL; sql == nil || *sql != "SELECT 1;" {
		t.Errorf("sql payload = %v", sql)
	}
	if ft := got[5].Payload.FinalText; ft == nil || *ft != "Created." {
		t.Errorf("finalText = %v", ft)
	}
}

func TestStream_InfersTagWithoutLabel(t *testing.T) {
	srv := sseServer(t, "data: {\"finalText\":\"done\",\"finalSql\":\"SELECT 2;\"}\n\n")
	defer srv.Close()

	got, err := collect(t, stream.New(srv.URL, auth.Static("test-token")))
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Tag != stream.TagDone {
		t.Errorf("tag = %q, want done", got[0].Tag)
	}
	if fs := got[0].Payload.FinalSQL; fs == nil || *fs != "SELECT 2;" {
		t.Errorf("finalSql = %v", fs)
	}
}

func TestStream_MalformedFrameSkipped(t *testing.T) {
	srv := sseServer(t,
		"event: delta\ndata: {not json}\n\n"+
			"event: sql\ndata: {\"sql\":\"SELECT 1;\"}\n\n")
	defer srv.Close()

	got, err := collect(t, stream.New(srv.URL, auth.Static("test-token")))
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1 (malformed frame dropped)", len(got))
	}
	if got[0].Tag != stream.TagSQL {
		t.Errorf("tag = %q, want sql", got[0].Tag)
	}
}

func TestStream_ApplicationErrorIsAnEvent(t *testing.T) {
	srv := sseServer(t, "event: error\ndata: {\"message\":\"model overloaded\"}\n\n")
	defer srv.Close()

	got, err := collect(t, stream.New(srv.URL, auth.Static("test-token")))
	if err != nil {
		t.Fatalf("server error events must not fail the stream: %v", err)
	}
	if len(got) != 1 || got[0].Tag != stream.TagError {
		t.Fatalf("got %+v, want one error event", got)
	}
}

func TestStream_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	events, wait := stream.New(srv.URL, auth.Static("test-token")).
		Stream(context.Background(), stream.SendRequest{Message: "x", ChatID: "c"})
	for range events {
		t.Error("no events expected before stream start failure")
	}
	if err := wait(); err == nil {
		t.Error("want terminal error on non-2xx status")
	}
}

func TestStream_CancelReleasesStream(t *testing.T) {
	requestDone := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(requestDone)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: delta\ndata: {\"textDelta\":\"a\",\"fullText\":\"a\"}\n\n")
		w.(http.Flusher).Flush()
		// Hold the connection open until the client goes away.
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events, wait := stream.New(srv.URL, auth.Static("test-token")).
		Stream(ctx, stream.SendRequest{Message: "x", ChatID: "c"})

	<-events // first event arrives
	cancel() // caller abandons iteration

	if err := wait(); err != context.Canceled {
		t.Errorf("wait = %v, want context.Canceled", err)
	}
	select {
	case <-requestDone:
	case <-time.After(2 * time.Second):
		t.Error("server handler still running; transport not released")
	}
}
