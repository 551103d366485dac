package chat

import (
	"strings"
	"unicode/utf8"

	"github.com/lromero/labchat/internal/domain"
)

const (
	// Extracted text above this many characters goes through whitespace
	// compression before being cached.
	compressThreshold = 60000
	// Text still above this after compression is cut to the first
	// truncateLines lines.
	truncateThreshold = 120000
	truncateLines     = 2000

	truncationNotice = "\n\n[Documento truncado a las primeras 2000 líneas]"
)

// Compress shrinks oversized document text: whitespace runs inside each line
// collapse to one space, runs of blank lines collapse to one, and text still
// above the hard ceiling is cut to the leading lines with a notice appended.
// Text at or below the threshold passes through untouched. The second return
// reports whether the tail was dropped.
func Compress(text string) (string, bool) {
	// Thresholds count characters, not bytes; accented text must not
	// compress early.
	if utf8.RuneCountInString(text) <= compressThreshold {
		return text, false
	}

	lines := strings.Split(text, "\n")
	compacted := make([]string, 0, len(lines))
	blankRun := false
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			if blankRun {
				continue
			}
			blankRun = true
			compacted = append(compacted, "")
			continue
		}
		blankRun = false
		compacted = append(compacted, strings.Join(fields, " "))
	}

	out := strings.Join(compacted, "\n")
	if utf8.RuneCountInString(out) <= truncateThreshold || len(compacted) <= truncateLines {
		return out, false
	}
	return strings.Join(compacted[:truncateLines], "\n") + truncationNotice, true
}

// AttachmentCache holds at most one processed document, keyed by filename.
// A new document with a different name evicts the previous one wholesale.
// Callers synchronize access; the cache itself is not locked.
type AttachmentCache struct {
	slot *domain.Attachment
}

// Lookup returns the cached document when its filename matches.
func (c *AttachmentCache) Lookup(name string) (*domain.Attachment, bool) {
	if c.slot != nil && c.slot.Name == name {
		return c.slot, true
	}
	return nil, false
}

// Put replaces the slot unconditionally.
func (c *AttachmentCache) Put(att *domain.Attachment) {
	c.slot = att
}

// Current returns whatever is cached, nil when empty.
func (c *AttachmentCache) Current() *domain.Attachment {
	return c.slot
}

// Clear empties the slot.
func (c *AttachmentCache) Clear() {
	c.slot = nil
}
