package sse_test

import (
	"io"
	"strings"
	"testing"

	"github.com/bitop-dev/dbchat/pkg/sse"
)

// chunkReader yields at most n bytes per Read, forcing arbitrary chunk
// boundaries through the reader.
type chunkReader struct {
	s string
	n int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.s) == 0 {
		return 0, io.EOF
	}
	n := c.n
	if n > len(c.s) {
		n = len(c.s)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.s[:n])
	c.s = c.s[n:]
	return n, nil
}

func frames(r io.Reader) []sse.Frame {
	rd := sse.NewReader(r)
	var out []sse.Frame
	for {
		f, err := rd.Next()
		if err != nil {
			break
		}
		out = append(out, f)
	}
	return out
}

func TestReader_LabeledFrame(t *testing.T) {
	fs := frames(strings.NewReader("event: sql\ndata: {\"sql\":\"SELECT 1;\"}\n\n"))
	if len(fs) != 1 {
		t.Fatalf("want 1 frame, got %d", len(fs))
	}
	if fs[0].Label != "sql" {
		t.Errorf("label = %q, want %q", fs[0].Label, "sql")
	}
	if fs[0].Data != `{"sql":"SELECT 1;"}` {
		t.Errorf("data = %q", fs[0].Data)
	}
}

func TestReader_UnlabeledFrame(t *testing.T) {
	fs := frames(strings.NewReader("data: {\"finalText\":\"done\"}\n\n"))
	if len(fs) != 1 {
		t.Fatalf("want 1 frame, got %d", len(fs))
	}
	if fs[0].Label != "" {
		t.Errorf("label = %q, want empty", fs[0].Label)
	}
}

func TestReader_LabelConsumedOnce(t *testing.T) {
	// Second data line has no fresh event line, so it carries no label.
	fs := frames(strings.NewReader("event: delta\ndata: {\"a\":1}\n\ndata: {\"b\":2}\n\n"))
	if len(fs) != 2 {
		t.Fatalf("want 2 frames, got %d", len(fs))
	}
	if fs[0].Label != "delta" {
		t.Errorf("frame[0].Label = %q", fs[0].Label)
	}
	if fs[1].Label != "" {
		t.Errorf("frame[1].Label = %q, want empty", fs[1].Label)
	}
}

func TestReader_DanglingLabelDiscarded(t *testing.T) {
	fs := frames(strings.NewReader("event: done\n"))
	if len(fs) != 0 {
		t.Fatalf("want 0 frames, got %d", len(fs))
	}
}

func TestReader_EmptyDataSkipped(t *testing.T) {
	fs := frames(strings.NewReader("data: \ndata: real\n\n"))
	if len(fs) != 1 {
		t.Fatalf("want 1 frame, got %d", len(fs))
	}
	if fs[0].Data != "real" {
		t.Errorf("data = %q", fs[0].Data)
	}
}

func TestReader_SkipsCommentsAndKeepalives(t *testing.T) {
	fs := frames(strings.NewReader(": keep-alive\nid: 7\nretry: 500\ndata: real\n\n"))
	if len(fs) != 1 {
		t.Fatalf("want 1 frame, got %d", len(fs))
	}
	if fs[0].Data != "real" {
		t.Errorf("data = %q", fs[0].Data)
	}
}

func TestReader_EmptyStream(t *testing.T) {
	if fs := frames(strings.NewReader("")); len(fs) != 0 {
		t.Errorf("want 0 frames on empty stream, got %d", len(fs))
	}
}

func TestReader_ChunkingDoesNotAffectFrames(t *testing.T) {
	input := "event: sql\ndata: {\"sql\":\"SELECT 1;\"}\n\n" +
		"data: {\"textDelta\":\"hé\",\"fullText\":\"hé\"}\n\n" +
		"event: done\ndata: {\"finalText\":\"ok\"}\n\n"

	whole := frames(strings.NewReader(input))
	for _, size := range []int{1, 2, 3, 7, 16} {
		chunked := frames(&chunkReader{s: input, n: size})
		if len(chunked) != len(whole) {
			t.Fatalf("chunk=%d: want %d frames, got %d", size, len(whole), len(chunked))
		}
		for i := range whole {
			if chunked[i] != whole[i] {
				t.Errorf("chunk=%d frame[%d] = %+v, want %+v", size, i, chunked[i], whole[i])
			}
		}
	}
}

func TestReader_SplitUTF8Reassembled(t *testing.T) {
	// Byte-at-a-time chunks split every multi-byte character.
	input := "data: {\"fullText\":\"héllo wörld — 日本語\"}\n\n"
	fs := frames(&chunkReader{s: input, n: 1})
	if len(fs) != 1 {
		t.Fatalf("want 1 frame, got %d", len(fs))
	}
	want := `{"fullText":"héllo wörld — 日本語"}`
	if fs[0].Data != want {
		t.Errorf("data = %q, want %q", fs[0].Data, want)
	}
	if strings.ContainsRune(fs[0].Data, '�') {
		t.Error("data contains replacement character")
	}
}
