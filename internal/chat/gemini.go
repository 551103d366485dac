package chat

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiModel implements Model on the hosted Gemini API.
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGemini connects to the Gemini API with the given key and model name.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiModel{client: client, model: model}, nil
}

// StartSession opens a chat session with fixed sampling parameters. The
// session carries its own turn history server-side.
func (m *GeminiModel) StartSession(ctx context.Context) (Session, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.7),
		TopP:            genai.Ptr[float32](0.95),
		TopK:            genai.Ptr[float32](40),
		MaxOutputTokens: 800,
	}
	session, err := m.client.Chats.Create(ctx, m.model, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("create chat session: %w", err)
	}
	return &geminiSession{chat: session}, nil
}

type geminiSession struct {
	chat *genai.Chat
}

func (s *geminiSession) Send(ctx context.Context, prompt string) (string, error) {
	resp, err := s.chat.SendMessage(ctx, genai.Part{Text: prompt})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.Text(), nil
}
