// Package history keeps a local JSONL log of chat transcripts so past
// conversations can be reviewed offline.
//
// Each chat is one JSONL file:
//   - Line 1: Header (type=chat, chat_id, version, timestamp)
//   - Lines 2+: MessageEntry (one per message)
//
// Files are named <timestamp>-<chatid8>.jsonl and are append-only; the file
// is not a source of truth (the backend owns chat records), so a lost or
// malformed file only costs local review.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const currentVersion = 1

// EntryType identifies the kind of JSONL line.
type EntryType string

const (
	EntryTypeChat    EntryType = "chat"
	EntryTypeMessage EntryType = "message"
)

// Header is the first line written to every transcript file.
type Header struct {
	Type      EntryType `json:"type"` // "chat"
	ChatID    string    `json:"chat_id"`
	Version   int       `json:"version"`
	Timestamp string    `json:"timestamp"` // ISO 8601
}

// MessageEntry records one transcript message.
type MessageEntry struct {
	Type      EntryType `json:"type"` // "message"
	ID        string    `json:"id"`
	Timestamp string    `json:"timestamp"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
}

// DefaultDir returns the platform-appropriate directory for transcript files.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dbchat", "history")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dbchat", "history")
}

// Log is an open transcript file. Writes are append-only; the mutex guards
// against accidental concurrent appends.
type Log struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	chatID string
}

// ChatID returns the chat the log belongs to.
func (l *Log) ChatID() string { return l.chatID }

// FilePath returns the absolute path to the JSONL file.
func (l *Log) FilePath() string { return l.f.Name() }

// Create opens a new transcript file for chatID in dir and writes the header.
func Create(dir, chatID string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: mkdir %s: %w", dir, err)
	}
	if chatID == "" {
		chatID = uuid.New().String()
	}

	short := chatID
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("%s-%s.jsonl",
		time.Now().UTC().Format("20060102-150405"), short)
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("history: create %s: %w", path, err)
	}

	l := &Log{f: f, w: bufio.NewWriter(f), chatID: chatID}
	header := Header{
		Type:      EntryTypeChat,
		ChatID:    chatID,
		Version:   currentVersion,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := l.writeLine(header); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// Append writes one message to the transcript. Returns the entry ID.
func (l *Log) Append(role, text string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := MessageEntry{
		Type:      EntryTypeMessage,
		ID:        uuid.New().String()[:8],
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Role:      role,
		Text:      text,
	}
	if err := l.writeLine(entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}

func (l *Log) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("history: marshal entry: %w", err)
	}
	if _, err := l.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("history: write entry: %w", err)
	}
	return l.w.Flush()
}

// Close flushes and closes the transcript file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

// ---------------------------------------------------------------------------
// Listing and loading
// ---------------------------------------------------------------------------

// Info is a lightweight summary of one transcript, used for listing.
type Info struct {
	ChatID       string
	Path         string
	Created      time.Time
	MessageCount int
	FirstMessage string // text of the first user message
}

// List returns summary info for all transcripts in dir, newest first.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: list: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		info, err := readInfo(filepath.Join(dir, e.Name()))
		if err != nil {
			continue // skip malformed files
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Created.After(infos[j].Created)
	})
	return infos, nil
}

func readInfo(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}

	info := Info{Path: path}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		switch entryType(line) {
		case EntryTypeChat:
			var h Header
			if json.Unmarshal([]byte(line), &h) == nil {
				info.ChatID = h.ChatID
				if t, err := time.Parse(time.RFC3339, h.Timestamp); err == nil {
					info.Created = t
				}
			}
		case EntryTypeMessage:
			info.MessageCount++
			if info.FirstMessage == "" {
				var e MessageEntry
				if json.Unmarshal([]byte(line), &e) == nil && e.Role == "user" {
					info.FirstMessage = e.Text
				}
			}
		}
	}

	if info.ChatID == "" {
		return Info{}, fmt.Errorf("history: no chat header in %s", path)
	}
	return info, nil
}

// Load reads all messages of the transcript matching the chat ID prefix.
func Load(dir, idPrefix string) ([]MessageEntry, error) {
	infos, err := List(dir)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if !strings.HasPrefix(info.ChatID, idPrefix) {
			continue
		}
		return readMessages(info.Path)
	}
	return nil, fmt.Errorf("history: no transcript for chat %q", idPrefix)
}

func readMessages(path string) ([]MessageEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("history: read %s: %w", path, err)
	}
	var msgs []MessageEntry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if entryType(line) != EntryTypeMessage {
			continue
		}
		var e MessageEntry
		if json.Unmarshal([]byte(line), &e) == nil {
			msgs = append(msgs, e)
		}
	}
	return msgs, nil
}

func entryType(line string) EntryType {
	var probe struct {
		Type EntryType `json:"type"`
	}
	if json.Unmarshal([]byte(line), &probe) != nil {
		return ""
	}
	return probe.Type
}
