// Package stream is the client for the backend's streaming agent endpoint.
// It multiplexes text deltas, generated SQL, tool status, context telemetry,
// session rollover and errors over one SSE connection and exposes them as a
// channel of typed events.
package stream

// EventTag discriminates the event union.
type EventTag string

const (
	TagDelta    EventTag = "delta"
	TagSQL      EventTag = "sql"
	TagDone     EventTag = "done"
	TagError    EventTag = "error"
	TagTool     EventTag = "tool"
	TagContext  EventTag = "context"
	TagRollover EventTag = "chat_rollover"
)

// Tool status values carried by tool events.
const (
	ToolStart = "start"
	ToolDone  = "done"
	ToolError = "error"
)

// Payload carries the named fields of one event. All fields are optional;
// pointer types keep "absent" distinct from the zero value.
type Payload struct {
	TextDelta *string `json:"textDelta,omitempty"`
	FullText  *string `json:"fullText,omitempty"`
	SQL       *string `json:"sql,omitempty"`
	FinalText *string `json:"finalText,omitempty"`
	FinalSQL  *string `json:"finalSql,omitempty"`
	Message   *string `json:"message,omitempty"`
	Name      *string `json:"name,omitempty"`
	Status    *string `json:"status,omitempty"`
	ChatID    *string `json:"chatId,omitempty"`
	UsedChars *int    `json:"usedChars,omitempty"`
	CapChars  *int    `json:"capChars,omitempty"`
	UsagePct  *int    `json:"usagePct,omitempty"`
	NewChatID *string `json:"newChatId,omitempty"`
}

// Event is one dispatched (tag, payload) pair.
type Event struct {
	Tag     EventTag
	Payload Payload
}

// resolveTag picks the event tag: an explicit SSE label always wins, then
// payload shape decides by fixed precedence. The precedence mirrors the
// server's emission order for unlabeled frames and must not be reordered.
func resolveTag(label string, p Payload) EventTag {
	if label != "" {
		return EventTag(label)
	}
	switch {
	case p.FinalText != nil:
		return TagDone
	case p.Message != nil && p.TextDelta == nil:
		return TagError
	case p.SQL != nil && p.TextDelta == nil:
		return TagSQL
	case p.Name != nil && p.Status != nil:
		return TagTool
	case p.UsedChars != nil:
		return TagContext
	case p.NewChatID != nil:
		return TagRollover
	default:
		return TagDelta
	}
}
