package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/lromero/labchat/internal/chat"
	"github.com/lromero/labchat/internal/identity"
)

// WSHandler streams transcript updates over a websocket so a second tab (or
// a reconnecting client) sees turns as they are appended.
type WSHandler struct {
	svc   *chat.Service
	isDev bool
}

// NewWSHandler creates the websocket endpoint handler.
func NewWSHandler(svc *chat.Service, isDev bool) *WSHandler {
	return &WSHandler{svc: svc, isDev: isDev}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if h.isDev {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	conv := h.svc.Conversation(userID, sessionID)

	subID := uuid.NewString()
	events := conv.Subscribe(subID)
	defer conv.Unsubscribe(subID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client never sends frames; this read loop only detects close.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case msg, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				slog.Debug("websocket write failed", "error", err,
					"user_id", userID, "session_id", sessionID)
				return
			}
		}
	}
}
