package chat

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConversationLoggerWritesNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	globalPath := filepath.Join(dir, "all.ndjson")
	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:       true,
		Dir:           dir,
		GlobalEnabled: true,
		GlobalPath:    globalPath,
		QueueSize:     16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}

	logger.Log(ConversationLogEvent{
		Timestamp:  time.Now(),
		UserID:     "u1",
		SessionID:  "s1",
		Channel:    "web",
		Direction:  "inbound",
		EventType:  "user_message",
		ContentRaw: "\x1b[31mhola\x1b[0m mundo\r",
	})
	logger.Log(ConversationLogEvent{
		UserID:     "u1",
		SessionID:  "s1",
		Channel:    "web",
		Direction:  "outbound",
		EventType:  "model_response",
		ContentRaw: "respuesta",
	})
	logger.Close()

	events := readNDJSON(t, filepath.Join(dir, "u1", "s1.ndjson"))
	if len(events) != 2 {
		t.Fatalf("session file has %d events, want 2", len(events))
	}
	if events[0].Content != "hola mundo" {
		t.Errorf("cleaned content = %q, want escape codes stripped", events[0].Content)
	}
	if events[0].ContentRaw != "\x1b[31mhola\x1b[0m mundo\r" {
		t.Errorf("raw content was altered: %q", events[0].ContentRaw)
	}
	if events[1].Timestamp.IsZero() {
		t.Error("missing timestamp should be filled in")
	}

	global := readNDJSON(t, globalPath)
	if len(global) != 2 {
		t.Errorf("global file has %d events, want 2", len(global))
	}
}

func TestDisabledLoggerIsNoOp(t *testing.T) {
	t.Parallel()

	logger, err := NewConversationLogger(ConversationLogConfig{}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	// Must not panic or block.
	logger.Log(ConversationLogEvent{UserID: "u1", SessionID: "s1", ContentRaw: "hola"})
	logger.Close()
}

func readNDJSON(t *testing.T, path string) []ConversationLogEvent {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var events []ConversationLogEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev ConversationLogEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad NDJSON line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return events
}
