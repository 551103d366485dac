package chat

import "context"

// Model creates conversational sessions against a generative backend.
type Model interface {
	// StartSession opens a multi-turn session. The backend keeps the
	// turn history; callers send one combined prompt per turn.
	StartSession(ctx context.Context) (Session, error)
}

// Session is a live multi-turn exchange with the backend.
type Session interface {
	// Send forwards one prompt and returns the response text.
	Send(ctx context.Context, prompt string) (string, error)
}
