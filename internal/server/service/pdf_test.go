package service

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCountPages(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want int
	}{
		{"one page", buildPDF(1), 1},
		{"three pages", buildPDF(3), 3},
		{"header only", []byte("%PDF-1.4\n"), 0},
		{"garbage after header", []byte("%PDF-1.7\nnot really a pdf\n%%EOF\n"), 0},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countPages(tt.data); got != tt.want {
				t.Errorf("countPages() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"paper.pdf", "paper.pdf"},
		{"My Draft (v2).pdf", "My Draft (v2).pdf"},
		{"../../../etc/passwd.pdf", "../../../etc/passwd.pdf"},
		{"C:\\Users\\me\\paper.pdf", "C:\\Users\\me\\paper.pdf"},
		{"résumé.pdf", "résumé.pdf"},
		{"bad\x00\r\nname.pdf", "badname.pdf"},
		{"broken\xffutf8.pdf", "brokenutf8.pdf"},
		{"  spaced.pdf  ", "spaced.pdf"},
		{"", "article.pdf"},
		{"\x01\x02", "article.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := sanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}

	t.Run("long names keep their extension", func(t *testing.T) {
		for _, r := range []string{"a", "é", "論"} {
			got := sanitizeFilename(strings.Repeat(r, 300) + ".pdf")
			if !utf8.ValidString(got) {
				t.Fatalf("%s: result is not valid UTF-8: %q", r, got)
			}
			if n := utf8.RuneCountInString(got); n != 255 {
				t.Errorf("%s: expected 255 characters, got %d", r, n)
			}
			if !strings.HasSuffix(got, ".pdf") {
				t.Errorf("%s: expected .pdf suffix, got %q", r, got[len(got)-8:])
			}
		}
	})
}
