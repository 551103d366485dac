package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/lromero/labchat/internal/commands"
	"github.com/lromero/labchat/internal/domain"
	"github.com/lromero/labchat/internal/extract"
)

// allowedExtensions is the attachment allow-list.
var allowedExtensions = map[string]bool{
	"pdf":  true,
	"docx": true,
	"xlsx": true,
	"xls":  true,
	"txt":  true,
}

const noAPIKeyMsg = "Por favor, configura tu API key de Gemini primero."

// AttachmentUpload is an incoming file: base64 content, optionally with a
// data-URL prefix.
type AttachmentUpload struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Content  string `json:"content"`
}

// Service runs chat turns: command interception first, then attachment
// ingestion, then a single model call.
type Service struct {
	manager   *Manager
	interp    *commands.Interpreter
	model     Model
	convLog   *ConversationLogger
	maxUpload int64
	log       *slog.Logger
}

// NewService wires the turn handler. model may be nil when no API key is
// configured; non-command turns then get a fixed notice instead of a
// generated response.
func NewService(manager *Manager, interp *commands.Interpreter, model Model, convLog *ConversationLogger, maxUpload int64, log *slog.Logger) *Service {
	return &Service{
		manager:   manager,
		interp:    interp,
		model:     model,
		convLog:   convLog,
		maxUpload: maxUpload,
		log:       log,
	}
}

// Conversation resolves the per-session context, creating it on first use.
func (s *Service) Conversation(userID, sessionID string) *Conversation {
	return s.manager.Get(userID, sessionID)
}

// HandleTurn processes one user turn and returns the appended reply. All
// failures are rendered in-band as messages; the error surface of this
// method is intentionally empty.
func (s *Service) HandleTurn(ctx context.Context, conv *Conversation, text string, upload *AttachmentUpload) domain.Message {
	conv.turnMu.Lock()
	defer conv.turnMu.Unlock()

	userMsg := domain.Message{
		Role:      domain.RoleUser,
		Text:      text,
		Timestamp: time.Now(),
	}
	if upload != nil {
		userMsg.HasAttachment = true
		userMsg.AttachmentName = upload.Name
	}
	conv.append(userMsg)
	s.logTurn(conv, "inbound", "user_message", text)

	// Commands get first refusal; a handled command never reaches the
	// model or the attachment pipeline.
	if resp, handled := s.interp.Execute(ctx, conv.Gate(), text); handled {
		return s.reply(conv, domain.RoleAssistant, resp, "command")
	}

	if upload != nil {
		if note := s.ingestAttachment(conv, upload); note != "" {
			return s.reply(conv, domain.RoleSystem, note, "validation")
		}
	}

	prompt := text
	if att := conv.Attachment(); att != nil {
		prompt = fmt.Sprintf("Documento adjunto '%s':\n\n%s\n\n---\n\n%s", att.Name, att.Text, text)
	}

	if s.model == nil {
		return s.reply(conv, domain.RoleAssistant, noAPIKeyMsg, "model")
	}
	session, err := conv.ensureSession(ctx, s.model)
	if err != nil {
		s.log.Error("failed to start model session", "error", err,
			"user_id", conv.UserID, "session_id", conv.SessionID)
		return s.reply(conv, domain.RoleAssistant,
			fmt.Sprintf("Error al generar respuesta: %v", err), "model")
	}
	answer, err := session.Send(ctx, prompt)
	if err != nil {
		s.log.Error("model call failed", "error", err,
			"user_id", conv.UserID, "session_id", conv.SessionID)
		return s.reply(conv, domain.RoleAssistant,
			fmt.Sprintf("Error al generar respuesta: %v", err), "model")
	}
	return s.reply(conv, domain.RoleAssistant, answer, "model")
}

// ingestAttachment validates, extracts and caches an upload. A non-empty
// return is a user-facing notice and means nothing was cached.
func (s *Service) ingestAttachment(conv *Conversation, up *AttachmentUpload) string {
	// Same filename as the cached document: reuse the extracted text.
	if _, cached := conv.lookupAttachment(up.Name); cached {
		s.log.Debug("attachment cache hit", "file", up.Name)
		return ""
	}

	if !allowedExtensions[extract.Extension(up.Name)] {
		return fmt.Sprintf("❌ Tipo de archivo no permitido: %s. Formatos aceptados: pdf, docx, xlsx, xls, txt", up.Name)
	}

	raw, err := extract.DecodeBase64(up.Content)
	if err != nil {
		return fmt.Sprintf("Error al procesar el archivo %s: %v", up.Name, err)
	}
	if int64(len(raw)) > s.maxUpload {
		return fmt.Sprintf("❌ El archivo %s supera el tamaño máximo de 10 MB", up.Name)
	}

	text, err := extract.FromBytes(raw, up.MimeType, up.Name)
	if err != nil {
		return err.Error()
	}

	compressed, truncated := Compress(text)
	conv.putAttachment(&domain.Attachment{
		Name:            up.Name,
		MimeType:        up.MimeType,
		SizeBytes:       int64(len(raw)),
		Text:            compressed,
		OriginalChars:   utf8.RuneCountInString(text),
		CompressedChars: utf8.RuneCountInString(compressed),
		Truncated:       truncated,
		CapturedAt:      time.Now(),
	})
	s.log.Info("attachment cached", "file", up.Name, "bytes", len(raw),
		"chars", utf8.RuneCountInString(text), "truncated", truncated)
	return ""
}

func (s *Service) reply(conv *Conversation, role domain.Role, text, source string) domain.Message {
	msg := domain.Message{
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}
	conv.append(msg)
	s.logTurn(conv, "outbound", source+"_response", text)
	return msg
}

func (s *Service) logTurn(conv *Conversation, direction, eventType, content string) {
	if s.convLog == nil {
		return
	}
	s.convLog.Log(ConversationLogEvent{
		Timestamp:  time.Now(),
		UserID:     conv.UserID,
		SessionID:  conv.SessionID,
		Channel:    "web",
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
	})
}
