package chat

import (
	"context"
	"sync"
	"time"

	"github.com/lromero/labchat/internal/auth"
	"github.com/lromero/labchat/internal/domain"
)

// Conversation is the per-session context object: transcript, admin gate,
// attachment slot and the lazily created model session all live here instead
// of in process-wide globals.
type Conversation struct {
	UserID    string
	SessionID string

	// turnMu serializes whole turns, including the outbound model call.
	// mu protects the fields below and is never held across I/O.
	turnMu sync.Mutex
	mu     sync.Mutex

	messages    []domain.Message
	gate        *auth.Gate
	cache       AttachmentCache
	session     Session
	lastActive  time.Time
	subscribers map[string]chan domain.Message
}

func newConversation(userID, sessionID, adminSecret string, sessionTTL time.Duration) *Conversation {
	return &Conversation{
		UserID:      userID,
		SessionID:   sessionID,
		gate:        auth.NewGate(adminSecret, sessionTTL),
		lastActive:  time.Now(),
		subscribers: make(map[string]chan domain.Message),
	}
}

// Gate returns the conversation's admin gate.
func (c *Conversation) Gate() *auth.Gate {
	return c.gate
}

// History returns a copy of the transcript.
func (c *Conversation) History() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// append adds a message to the transcript and fans it out to subscribers.
// Slow subscribers miss messages rather than stall the turn.
func (c *Conversation) append(msg domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	c.lastActive = time.Now()
	for _, ch := range c.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribe registers a transcript listener under the given id.
func (c *Conversation) Subscribe(id string) <-chan domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan domain.Message, 32)
	c.subscribers[id] = ch
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (c *Conversation) Unsubscribe(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.subscribers[id]; ok {
		delete(c.subscribers, id)
		close(ch)
	}
}

// Attachment returns the cached document, nil when the slot is empty.
func (c *Conversation) Attachment() *domain.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Current()
}

// ClearAttachment empties the cache slot.
func (c *Conversation) ClearAttachment() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Clear()
}

func (c *Conversation) lookupAttachment(name string) (*domain.Attachment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Lookup(name)
}

func (c *Conversation) putAttachment(att *domain.Attachment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Put(att)
}

// ensureSession creates the model session on first use and reuses it for
// the rest of the conversation's life.
func (c *Conversation) ensureSession(ctx context.Context, model Model) (Session, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != nil {
		return session, nil
	}

	session, err := model.StartSession(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	return session, nil
}

func (c *Conversation) touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActive = time.Now()
}

// idle reports whether the conversation has been inactive past the cutoff
// and has no live subscribers.
func (c *Conversation) idle(cutoff time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers) == 0 && c.lastActive.Before(cutoff)
}
