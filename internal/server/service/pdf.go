package service

import (
	"bytes"
	"log/slog"
	"path"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// countPages returns the page count of a PDF, or 0 when the document cannot
// be parsed. The parser panics on some malformed inputs.
func countPages(data []byte) (n int) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("pdf parser panicked", "panic", r)
			n = 0
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		slog.Debug("failed to parse pdf", "error", err)
		return 0
	}
	return r.NumPage()
}

// maxFilenameRunes matches original_filename VARCHAR(255).
const maxFilenameRunes = 255

// sanitizeFilename turns the submitted filename into display metadata. The
// name is kept as sent, directory parts included, minus control characters
// and invalid UTF-8, and cut to maxFilenameRunes with its extension kept.
// It never reaches the filesystem.
func sanitizeFilename(name string) string {
	name = strings.ToValidUTF8(name, "")
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if runes := []rune(name); len(runes) > maxFilenameRunes {
		ext := []rune(path.Ext(name))
		if len(ext) >= maxFilenameRunes {
			ext = nil
		}
		name = string(runes[:maxFilenameRunes-len(ext)]) + string(ext)
	}

	if name == "" {
		name = "article.pdf"
	}
	return name
}
