package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/lromero/labchat/internal/domain"
)

func TestCompressBelowThresholdIsUntouched(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x", 40000)
	got, truncated := Compress(text)
	if got != text {
		t.Error("text below the threshold must pass through unchanged")
	}
	if truncated {
		t.Error("text below the threshold must not be truncated")
	}
}

func TestCompressCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	line := "columna    uno\tcolumna         dos"
	var b strings.Builder
	for b.Len() < compressThreshold+1000 {
		b.WriteString(line)
		b.WriteString("\n\n\n\n")
	}

	got, truncated := Compress(b.String())
	if truncated {
		t.Fatal("compressed text fits, should not be truncated")
	}
	if strings.Contains(got, "  ") {
		t.Error("whitespace runs inside lines should collapse to one space")
	}
	if strings.Contains(got, "\n\n\n") {
		t.Error("blank line runs should collapse to at most one")
	}
	if !strings.Contains(got, "columna uno columna dos") {
		t.Errorf("line content mangled: %q", got[:100])
	}
}

func TestCompressTruncatesHugeText(t *testing.T) {
	t.Parallel()

	// 5000 lines of 40 chars each: far beyond both thresholds.
	line := strings.Repeat("y", 40)
	lines := make([]string, 5000)
	for i := range lines {
		lines[i] = line
	}
	text := strings.Join(lines, "\n")

	got, truncated := Compress(text)
	if !truncated {
		t.Fatal("oversized text must be truncated")
	}
	if !strings.HasSuffix(got, truncationNotice) {
		t.Errorf("truncated text must end with the notice, got tail %q", got[len(got)-80:])
	}
	body := strings.TrimSuffix(got, truncationNotice)
	if n := strings.Count(body, "\n") + 1; n != truncateLines {
		t.Errorf("truncated body has %d lines, want %d", n, truncateLines)
	}
	if len(body) > truncateThreshold {
		t.Errorf("truncated body has %d chars, want <= %d", len(body), truncateThreshold)
	}
}

func TestCompressThresholdCountsRunes(t *testing.T) {
	t.Parallel()

	// 56,000 characters but 72,000 bytes: under the character threshold,
	// so the collapsible whitespace must survive untouched.
	text := strings.Repeat("ñ  ñ\n\n\n", 8000)
	got, truncated := Compress(text)
	if got != text {
		t.Error("accented text below the character threshold must pass through unchanged")
	}
	if truncated {
		t.Error("accented text below the character threshold must not be truncated")
	}
}

func TestCompressDoesNotMarkShortDocumentsTruncated(t *testing.T) {
	t.Parallel()

	// Over the hard ceiling but only 100 lines: nothing can be cut, so no
	// notice and no truncated flag.
	line := strings.Repeat("z", 1500)
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = line
	}
	text := strings.Join(lines, "\n")

	got, truncated := Compress(text)
	if truncated {
		t.Error("nothing was dropped, truncated must be false")
	}
	if strings.Contains(got, truncationNotice) {
		t.Error("notice must not be appended when no lines were cut")
	}
	if n := strings.Count(got, "\n") + 1; n != len(lines) {
		t.Errorf("output has %d lines, want %d", n, len(lines))
	}
}

func TestAttachmentCacheSingleSlot(t *testing.T) {
	t.Parallel()

	var cache AttachmentCache
	if cache.Current() != nil {
		t.Fatal("cache should start empty")
	}

	first := &domain.Attachment{Name: "a.pdf", Text: "uno", CapturedAt: time.Now()}
	cache.Put(first)

	if got, ok := cache.Lookup("a.pdf"); !ok || got != first {
		t.Error("Lookup by matching name should hit")
	}
	if _, ok := cache.Lookup("b.pdf"); ok {
		t.Error("Lookup with a different name should miss")
	}

	second := &domain.Attachment{Name: "b.pdf", Text: "dos", CapturedAt: time.Now()}
	cache.Put(second)
	if _, ok := cache.Lookup("a.pdf"); ok {
		t.Error("previous entry should be evicted wholesale")
	}
	if got := cache.Current(); got != second {
		t.Errorf("Current = %+v, want the new entry", got)
	}

	cache.Clear()
	if cache.Current() != nil {
		t.Error("Clear should empty the slot")
	}
}
