// Package domain contains core domain types for the Labchat application.
package domain

import (
	"time"
)

// Role identifies who produced a chat message.
type Role string

const (
	// RoleUser is a message typed by the person in the chat.
	RoleUser Role = "user"
	// RoleAssistant is a model- or command-generated reply.
	RoleAssistant Role = "assistant"
	// RoleSystem is an in-band notice (attachment rejected, etc.).
	RoleSystem Role = "system"
)

// Message is one entry in a conversation transcript. Messages are immutable
// once appended and live only in process memory.
type Message struct {
	Role           Role      `json:"role"`
	Text           string    `json:"text"`
	HasAttachment  bool      `json:"has_attachment,omitempty"`
	AttachmentName string    `json:"attachment_name,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// IsUser reports whether the message was typed by the user.
func (m *Message) IsUser() bool {
	return m.Role == RoleUser
}
