package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const sweepInterval = time.Minute

// Manager owns the live conversations, keyed by user and session id, and
// reaps the ones that go idle.
type Manager struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation

	adminSecret string
	sessionTTL  time.Duration
}

// NewManager creates a conversation registry. adminSecret and sessionTTL
// seed the admin gate of every new conversation.
func NewManager(adminSecret string, sessionTTL time.Duration) *Manager {
	return &Manager{
		conversations: make(map[string]*Conversation),
		adminSecret:   adminSecret,
		sessionTTL:    sessionTTL,
	}
}

// Get returns the conversation for the pair, creating it on first use.
func (m *Manager) Get(userID, sessionID string) *Conversation {
	key := userID + ":" + sessionID

	m.mu.RLock()
	conv, ok := m.conversations[key]
	m.mu.RUnlock()
	if ok {
		conv.touch()
		return conv
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.conversations[key]; ok {
		return conv
	}
	conv = newConversation(userID, sessionID, m.adminSecret, m.sessionTTL)
	m.conversations[key] = conv
	slog.Debug("conversation created", "user_id", userID, "session_id", sessionID)
	return conv
}

// Count returns the number of live conversations.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conversations)
}

// StartSweeper launches a goroutine that drops conversations idle longer
// than ttl. It stops when ctx is canceled.
func (m *Manager) StartSweeper(ctx context.Context, ttl time.Duration) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep(time.Now().Add(-ttl))
			}
		}
	}()
}

func (m *Manager) sweep(cutoff time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, conv := range m.conversations {
		if conv.idle(cutoff) {
			delete(m.conversations, key)
			slog.Info("conversation expired",
				"user_id", conv.UserID, "session_id", conv.SessionID)
		}
	}
}
