package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

const defaultLogQueueSize = 256

// ConversationLogConfig controls transcript logging. Per-session files are
// written under Dir as <user>/<session>.ndjson; the global mirror appends
// every event to a single file.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// ConversationLogEvent is one NDJSON record. ContentRaw keeps the original
// text; Content is a cleaned copy for humans reading the log.
type ConversationLogEvent struct {
	Timestamp  time.Time      `json:"ts"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw,omitempty"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ConversationLogger writes chat events to NDJSON files off the request
// path. Events are dropped, not blocked on, when the queue is full.
type ConversationLogger struct {
	cfg    ConversationLogConfig
	log    *slog.Logger
	events chan ConversationLogEvent
	done   chan struct{}

	files  map[string]*os.File
	global *os.File

	closeOnce sync.Once
}

// NewConversationLogger starts the background writer. A fully disabled
// config yields a logger whose Log is a no-op.
func NewConversationLogger(cfg ConversationLogConfig, log *slog.Logger) (*ConversationLogger, error) {
	l := &ConversationLogger{cfg: cfg, log: log}
	if !cfg.Enabled && !cfg.GlobalEnabled {
		return l, nil
	}

	if cfg.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create conversation log dir: %w", err)
		}
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o755); err != nil {
			return nil, fmt.Errorf("create global log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.GlobalPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open global conversation log: %w", err)
		}
		l.global = f
	}

	queue := cfg.QueueSize
	if queue <= 0 {
		queue = defaultLogQueueSize
	}
	l.events = make(chan ConversationLogEvent, queue)
	l.done = make(chan struct{})
	l.files = make(map[string]*os.File)
	go l.run()
	return l, nil
}

// Log enqueues an event. It never blocks; under backpressure the event is
// dropped and counted against the process log instead.
func (l *ConversationLogger) Log(ev ConversationLogEvent) {
	if l.events == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Content == "" {
		ev.Content = cleanForReadability(ev.ContentRaw)
	}
	select {
	case l.events <- ev:
	default:
		l.log.Warn("conversation log queue full, dropping event",
			"user_id", ev.UserID, "session_id", ev.SessionID)
	}
}

// Close drains the queue and closes all files.
func (l *ConversationLogger) Close() {
	if l.events == nil {
		return
	}
	l.closeOnce.Do(func() {
		close(l.events)
		<-l.done
	})
}

func (l *ConversationLogger) run() {
	defer close(l.done)
	for ev := range l.events {
		l.write(ev)
	}
	for _, f := range l.files {
		if err := f.Close(); err != nil {
			l.log.Warn("failed to close conversation log file", "error", err)
		}
	}
	if l.global != nil {
		if err := l.global.Close(); err != nil {
			l.log.Warn("failed to close global conversation log", "error", err)
		}
	}
}

func (l *ConversationLogger) write(ev ConversationLogEvent) {
	line, err := json.Marshal(ev)
	if err != nil {
		l.log.Warn("failed to marshal conversation log event", "error", err)
		return
	}
	line = append(line, '\n')

	if l.cfg.Enabled {
		if f := l.sessionFile(ev.UserID, ev.SessionID); f != nil {
			if _, err := f.Write(line); err != nil {
				l.log.Warn("failed to write conversation log", "error", err)
			}
		}
	}
	if l.global != nil {
		if _, err := l.global.Write(line); err != nil {
			l.log.Warn("failed to write global conversation log", "error", err)
		}
	}
}

func (l *ConversationLogger) sessionFile(userID, sessionID string) *os.File {
	key := userID + "/" + sessionID
	if f, ok := l.files[key]; ok {
		return f
	}

	dir := filepath.Join(l.cfg.Dir, sanitizePathComponent(userID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		l.log.Warn("failed to create conversation log dir", "error", err)
		return nil
	}
	path := filepath.Join(dir, sanitizePathComponent(sessionID)+".ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.log.Warn("failed to open conversation log file", "error", err, "path", path)
		return nil
	}
	l.files[key] = f
	return f
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// cleanForReadability strips terminal escape sequences and carriage returns
// so the logged text reads cleanly.
func cleanForReadability(s string) string {
	s = ansiEscape.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, "\r", "")
}

// sanitizePathComponent keeps ids safe to use as file names.
func sanitizePathComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
