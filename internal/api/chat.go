package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/lromero/labchat/internal/chat"
	"github.com/lromero/labchat/internal/domain"
	"github.com/lromero/labchat/internal/identity"
)

// ChatHandler serves the conversation endpoints.
type ChatHandler struct {
	*Handler
	limiter *RateLimiter
	maxBody int64
}

// NewChatHandler wires the chat routes onto the base handler.
func NewChatHandler(base *Handler, limiter *RateLimiter, maxBody int64) *ChatHandler {
	return &ChatHandler{
		Handler: base,
		limiter: limiter,
		maxBody: maxBody,
	}
}

// RegisterRoutes mounts the chat endpoints.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/", h.SendMessage)
		r.Get("/history", h.GetHistory)
		r.Get("/attachment", h.GetAttachment)
		r.Delete("/attachment", h.DeleteAttachment)
	})
}

type sendMessageRequest struct {
	Message    string                 `json:"message"`
	Attachment *chat.AttachmentUpload `json:"attachment,omitempty"`
}

type sendMessageResponse struct {
	Reply domain.Message `json:"reply"`
}

// SendMessage runs one chat turn and returns the reply. Command handling,
// attachment validation and model failures all come back as regular replies;
// HTTP errors here are transport-level only.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	if h.limiter != nil && !h.limiter.Allow(userID) {
		slog.Warn("rate limit exceeded", "user_id", userID, "ip", identity.IPFromRequest(r))
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" && req.Attachment == nil {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	conv := h.svc.Conversation(userID, sessionID)
	reply := h.svc.HandleTurn(r.Context(), conv, req.Message, req.Attachment)
	JSON(w, http.StatusOK, sendMessageResponse{Reply: reply})
}

// GetHistory returns the session transcript.
func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	messages := h.svc.Conversation(userID, sessionID).History()
	if messages == nil {
		messages = []domain.Message{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

type attachmentInfo struct {
	Cached          bool   `json:"cached"`
	Name            string `json:"name,omitempty"`
	MimeType        string `json:"mime_type,omitempty"`
	SizeBytes       int64  `json:"size_bytes,omitempty"`
	OriginalChars   int    `json:"original_chars,omitempty"`
	CompressedChars int    `json:"compressed_chars,omitempty"`
	Truncated       bool   `json:"truncated,omitempty"`
	CapturedAt      string `json:"captured_at,omitempty"`
}

// GetAttachment reports what document is cached, without its text.
func (h *ChatHandler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	att := h.svc.Conversation(userID, sessionID).Attachment()
	if att == nil {
		JSON(w, http.StatusOK, attachmentInfo{Cached: false})
		return
	}
	JSON(w, http.StatusOK, attachmentInfo{
		Cached:          true,
		Name:            att.Name,
		MimeType:        att.MimeType,
		SizeBytes:       att.SizeBytes,
		OriginalChars:   att.OriginalChars,
		CompressedChars: att.CompressedChars,
		Truncated:       att.Truncated,
		CapturedAt:      att.CapturedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// DeleteAttachment empties the cache slot.
func (h *ChatHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	h.svc.Conversation(userID, sessionID).ClearAttachment()
	JSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
