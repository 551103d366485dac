// Package extract turns uploaded documents into plain text for the model.
package extract

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// Process decodes a base64 payload and extracts its text according to the
// file's extension, falling back to the MIME type. Returned errors carry the
// user-facing message verbatim.
func Process(base64Content, mimeType, fileName string) (string, error) {
	raw, err := DecodeBase64(base64Content)
	if err != nil {
		return "", fmt.Errorf("Error al procesar el archivo %s: %v", fileName, err)
	}
	return FromBytes(raw, mimeType, fileName)
}

// FromBytes dispatches decoded file content to the matching extractor.
func FromBytes(raw []byte, mimeType, fileName string) (string, error) {
	ext := Extension(fileName)
	lowerMime := strings.ToLower(mimeType)
	slog.Debug("processing attachment", "file", fileName, "mime", mimeType, "ext", ext, "bytes", len(raw))

	switch {
	case ext == "pdf" || strings.Contains(lowerMime, "pdf"):
		return FromPDF(raw)
	case ext == "docx" || strings.Contains(lowerMime, "wordprocessingml"):
		return FromDOCX(raw)
	case ext == "xlsx" || ext == "xls" || strings.Contains(lowerMime, "spreadsheet"):
		return FromXLSX(raw)
	case ext == "txt" || strings.Contains(lowerMime, "text/plain"):
		return FromTXT(raw)
	default:
		return "", fmt.Errorf("Tipo de archivo no soportado: %s (.%s)", mimeType, ext)
	}
}

// Extension returns the lowercased filename extension without the dot,
// empty when the name has none.
func Extension(fileName string) string {
	if idx := strings.LastIndex(fileName, "."); idx != -1 {
		return strings.ToLower(fileName[idx+1:])
	}
	return ""
}

// DecodeBase64 decodes file content, stripping a data-URL prefix
// ("data:type/subtype;base64,") when present.
func DecodeBase64(content string) ([]byte, error) {
	if idx := strings.Index(content, ","); idx != -1 {
		content = content[idx+1:]
	}
	// Browsers sometimes wrap long payloads; strip whitespace before
	// decoding.
	content = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, content)

	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(content); rawErr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("decodificación base64: %w", err)
	}
	return raw, nil
}

// FromPDF extracts page text in order, one page per line.
func FromPDF(raw []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("Error al leer PDF: %v", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("Error al leer PDF: %v", err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}

// FromDOCX extracts body paragraphs and tables in document order.
func FromDOCX(raw []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("Error al leer DOCX: %v", err)
	}

	var b strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch item.(type) {
		case *docx.Paragraph, *docx.Table:
			b.WriteString(fmt.Sprint(item))
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// FromXLSX renders every sheet as framed rows: the first non-empty row is
// labeled as headers, subsequent rows are numbered, cells joined by pipes.
func FromXLSX(raw []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("Error al leer XLSX: %v", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close workbook", "error", closeErr)
		}
	}()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("Error al leer XLSX: %v", err)
		}

		fmt.Fprintf(&b, "\n=== HOJA: %s ===\n", sheet)
		count := 0
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			hasContent := false
			for _, cell := range row {
				cell = strings.TrimSpace(cell)
				if cell != "" {
					hasContent = true
				}
				cells = append(cells, cell)
			}
			if !hasContent {
				continue
			}
			if count == 0 {
				b.WriteString("ENCABEZADOS: " + strings.Join(cells, " | ") + "\n")
			} else {
				fmt.Fprintf(&b, "FILA %d: %s\n", count, strings.Join(cells, " | "))
			}
			count++
		}
		fmt.Fprintf(&b, "\n--- FIN HOJA %s (%d filas) ---\n", sheet, count)
	}
	return strings.TrimSpace(b.String()), nil
}

// FromTXT decodes plain text, preferring UTF-8 and falling back to Latin-1
// for legacy files. Latin-1 accepts any byte sequence, so decoding cannot
// fail.
func FromTXT(raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("Error: No se pudo decodificar el archivo de texto")
	}
	return string(decoded), nil
}
