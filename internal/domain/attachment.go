package domain

import (
	"time"
)

// Attachment is the single-slot cache entry for the most recently processed
// document. At most one is alive per conversation; a new attachment with a
// different name replaces it wholesale.
type Attachment struct {
	Name            string    `json:"name"`
	MimeType        string    `json:"mime_type"`
	SizeBytes       int64     `json:"size_bytes"`
	Text            string    `json:"-"`
	OriginalChars   int       `json:"original_chars"`
	CompressedChars int       `json:"compressed_chars"`
	Truncated       bool      `json:"truncated"`
	CapturedAt      time.Time `json:"captured_at"`
}
