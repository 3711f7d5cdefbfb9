// Package convo holds the in-memory state of one chat interaction: the
// transcript, the generated SQL, tool activity, and context telemetry. It is
// the consumer of the stream client's full event vocabulary.
package convo

import (
	crand "crypto/rand"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bitop-dev/dbchat/pkg/sqlfmt"
	"github.com/bitop-dev/dbchat/pkg/stream"
)

// ToolTTL is how long a finished tool-status entry stays visible.
const ToolTTL = 2 * time.Second

// FallbackErrorText is shown when an error event carries no message.
const FallbackErrorText = "Something went wrong. Please try again."

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript bubble.
type Message struct {
	ID   string
	Role Role
	Text string
	Time time.Time
}

// ContextUsage is the latest context-capacity snapshot for the active chat.
// Derived state: each context event (and rollover) supersedes it entirely.
type ContextUsage struct {
	ChatID    string
	UsedChars int
	CapChars  int
	UsagePct  int
	UpdatedAt time.Time
}

// ToolStatus is an ephemeral tool-activity entry. Entries in a terminal
// status carry an expiry instant and drop out of the visible set once it
// passes; a "start" entry stays until replaced.
type ToolStatus struct {
	Name       string
	Status     string
	ObservedAt time.Time

	expiresAt time.Time // zero = sticky
}

// Conversation applies stream events to chat state. Safe for concurrent use;
// the expected pattern is one applying goroutine with readers on the UI side.
type Conversation struct {
	mu      sync.Mutex
	now     func() time.Time
	entropy io.Reader

	chatID     string
	messages   []Message
	sql        string
	usage      ContextUsage
	tools      map[string]ToolStatus
	inProgress bool // trailing message is the assistant turn being streamed

	// OnRollover is invoked (outside the lock) when the server rolls the
	// session over to a new chat, e.g. to refresh the chat list.
	OnRollover func(newChatID string)
}

// New creates a Conversation for the given chat.
func New(chatID string) *Conversation {
	return &Conversation{
		now:     time.Now,
		entropy: ulid.Monotonic(crand.Reader, 0),
		chatID:  chatID,
		usage:   ContextUsage{ChatID: chatID},
		tools:   make(map[string]ToolStatus),
	}
}

func (c *Conversation) newMessageID() string {
	return ulid.MustNew(ulid.Timestamp(c.now()), c.entropy).String()
}

// ChatID returns the active chat ID (changes on rollover).
func (c *Conversation) ChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// SQL returns the currently displayed SQL.
func (c *Conversation) SQL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sql
}

// SetSQL seeds the SQL pane, e.g. from a loaded chat's latest version.
func (c *Conversation) SetSQL(sql string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sql = sql
}

// Usage returns the latest context-usage snapshot.
func (c *Conversation) Usage() ContextUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// ActiveTools returns the visible tool-status entries, evicting any whose
// expiry instant has passed. Eviction happens here on read; no timers run
// per entry.
func (c *Conversation) ActiveTools() []ToolStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var out []ToolStatus
	for name, ts := range c.tools {
		if !ts.expiresAt.IsZero() && !now.Before(ts.expiresAt) {
			delete(c.tools, name)
			continue
		}
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ObservedAt.Equal(out[j].ObservedAt) {
			return out[i].ObservedAt.Before(out[j].ObservedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// AddUserMessage appends a user bubble and marks the next assistant turn as
// in progress.
func (c *Conversation) AddUserMessage(text string) Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := Message{ID: c.newMessageID(), Role: RoleUser, Text: text, Time: c.now()}
	c.messages = append(c.messages, m)
	c.inProgress = false
	return m
}

// Apply folds one dispatched event into the state. Exactly one update rule
// runs per event; unknown tags are ignored.
func (c *Conversation) Apply(ev stream.Event) {
	var rollover string

	c.mu.Lock()
	switch ev.Tag {
	case stream.TagTool:
		c.applyTool(ev.Payload)
	case stream.TagContext:
		c.applyContext(ev.Payload)
	case stream.TagRollover:
		rollover = c.applyRollover(ev.Payload)
	case stream.TagDelta:
		c.applyDelta(ev.Payload)
	case stream.TagSQL:
		if ev.Payload.SQL != nil {
			c.sql = *ev.Payload.SQL // unformatted, mid-stream
		}
	case stream.TagDone:
		c.applyDone(ev.Payload)
	case stream.TagError:
		c.applyError(ev.Payload)
	}
	cb := c.OnRollover
	c.mu.Unlock()

	if rollover != "" && cb != nil {
		cb(rollover)
	}
}

func (c *Conversation) applyTool(p stream.Payload) {
	if p.Name == nil || p.Status == nil {
		return
	}
	ts := ToolStatus{Name: *p.Name, Status: *p.Status, ObservedAt: c.now()}
	if *p.Status != stream.ToolStart {
		ts.expiresAt = ts.ObservedAt.Add(ToolTTL)
	}
	// Same-name entries are replaced, never merged.
	c.tools[ts.Name] = ts
}

func (c *Conversation) applyContext(p stream.Payload) {
	u := ContextUsage{ChatID: c.chatID, UpdatedAt: c.now()}
	if p.ChatID != nil {
		u.ChatID = *p.ChatID
	}
	if p.UsedChars != nil {
		u.UsedChars = *p.UsedChars
	}
	if p.CapChars != nil {
		u.CapChars = *p.CapChars
	}
	if p.UsagePct != nil {
		u.UsagePct = *p.UsagePct
	}
	c.usage = u
}

func (c *Conversation) applyRollover(p stream.Payload) string {
	if p.NewChatID == nil {
		return ""
	}
	c.chatID = *p.NewChatID
	c.sql = ""
	c.usage = ContextUsage{ChatID: c.chatID}
	return c.chatID
}

func (c *Conversation) applyDelta(p stream.Payload) {
	if p.FullText == nil {
		return
	}
	text := strings.TrimSpace(*p.FullText)
	prior := c.trailingAssistantText()
	// Suppress flicker: a transient empty delta over an empty turn is a no-op.
	if text == "" && prior == "" {
		return
	}
	c.setTrailingAssistantText(text)
}

func (c *Conversation) applyDone(p stream.Payload) {
	if p.FinalText != nil && strings.TrimSpace(*p.FinalText) != "" {
		c.setTrailingAssistantText(strings.TrimSpace(*p.FinalText))
	}
	if p.FinalSQL != nil {
		c.sql = sqlfmt.Format(*p.FinalSQL)
	}
	c.inProgress = false
}

func (c *Conversation) applyError(p stream.Payload) {
	text := FallbackErrorText
	if p.Message != nil && strings.TrimSpace(*p.Message) != "" {
		text = strings.TrimSpace(*p.Message)
	}
	c.messages = append(c.messages, Message{
		ID:   c.newMessageID(),
		Role: RoleAssistant,
		Text: text,
		Time: c.now(),
	})
	c.inProgress = false
}

// AppendNotice appends an assistant bubble outside of any stream, e.g. for
// a transport failure surfaced by the caller.
func (c *Conversation) AppendNotice(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, Message{
		ID:   c.newMessageID(),
		Role: RoleAssistant,
		Text: text,
		Time: c.now(),
	})
	c.inProgress = false
}

func (c *Conversation) trailingAssistantText() string {
	if !c.inProgress || len(c.messages) == 0 {
		return ""
	}
	return c.messages[len(c.messages)-1].Text
}

func (c *Conversation) setTrailingAssistantText(text string) {
	if c.inProgress && len(c.messages) > 0 {
		c.messages[len(c.messages)-1].Text = text
		return
	}
	c.messages = append(c.messages, Message{
		ID:   c.newMessageID(),
		Role: RoleAssistant,
		Text: text,
		Time: c.now(),
	})
	c.inProgress = true
}
