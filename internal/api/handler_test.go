//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lromero/labchat/internal/chat"
	"github.com/lromero/labchat/internal/commands"
	"github.com/lromero/labchat/internal/domain"
	"github.com/lromero/labchat/internal/identity"
	"github.com/lromero/labchat/internal/store"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, "bad input")

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["error"] != "bad input" {
		t.Errorf("Expected error message, got %v", got)
	}
}

type echoModel struct{}

func (echoModel) StartSession(context.Context) (chat.Session, error) { return echoModel{}, nil }
func (echoModel) Send(_ context.Context, prompt string) (string, error) {
	return "eco: " + prompt, nil
}

func newTestRouter(t *testing.T, limiter *RateLimiter) http.Handler {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})

	manager := chat.NewManager("admin123", 300*time.Second)
	svc := chat.NewService(manager, commands.New(repo), echoModel{}, nil, 10<<20, slog.Default())

	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	NewChatHandler(NewHandler(svc), limiter, 16<<20).RegisterRoutes(r)
	return r
}

func postMessage(t *testing.T, router http.Handler, cookies []*http.Cookie, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSendMessageReturnsReply(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)
	w := postMessage(t, router, nil, `{"message":"hola"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp sendMessageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reply.Role != domain.RoleAssistant || resp.Reply.Text != "eco: hola" {
		t.Errorf("reply = %+v", resp.Reply)
	}
}

func TestSendMessageRejectsEmptyBody(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)

	if w := postMessage(t, router, nil, `{"message":"   "}`); w.Code != http.StatusBadRequest {
		t.Errorf("blank message status = %d, want 400", w.Code)
	}
	if w := postMessage(t, router, nil, `{not json`); w.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", w.Code)
	}
}

func TestHistoryFollowsIdentityCookie(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)

	w := postMessage(t, router, nil, `{"message":"hola"}`)
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("identity middleware should set the anonymous cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("history has %d messages, want 2", len(resp.Messages))
	}
	if resp.Messages[0].Text != "hola" || resp.Messages[1].Text != "eco: hola" {
		t.Errorf("history = %+v", resp.Messages)
	}

	// A request without the cookie lands in a fresh conversation.
	req = httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(resp.Messages) != 0 {
		t.Errorf("fresh identity history = %+v, want empty", resp.Messages)
	}
}

func TestAttachmentEndpoints(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)

	w := postMessage(t, router, nil,
		`{"message":"lee esto","attachment":{"name":"notas.txt","mime_type":"text/plain","content":"aG9sYSBtdW5kbw=="}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()

	req := httptest.NewRequest(http.MethodGet, "/api/chat/attachment", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var info attachmentInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode attachment info: %v", err)
	}
	if !info.Cached || info.Name != "notas.txt" {
		t.Errorf("attachment info = %+v", info)
	}
	if strings.Contains(rec.Body.String(), "hola mundo") {
		t.Error("attachment endpoint must not leak document text")
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/chat/attachment", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/chat/attachment", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode attachment info: %v", err)
	}
	if info.Cached {
		t.Error("attachment should be cleared after DELETE")
	}
}

func TestRateLimiterBlocksFloods(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, NewRateLimiter(2, time.Minute))

	w := postMessage(t, router, nil, `{"message":"uno"}`)
	cookies := w.Result().Cookies()
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w.Code)
	}
	if w = postMessage(t, router, cookies, `{"message":"dos"}`); w.Code != http.StatusOK {
		t.Fatalf("second request status = %d", w.Code)
	}
	if w = postMessage(t, router, cookies, `{"message":"tres"}`); w.Code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", w.Code)
	}
}
