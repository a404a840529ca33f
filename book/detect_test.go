package book

import "testing"

func TestDetect(t *testing.T) {
	epub := epubData(t)

	tests := []struct {
		name string
		file string
		data []byte
		want Format
	}{
		{"epub by extension", "book.EPUB", nil, FormatEPUB},
		{"fb2 by extension", "dir/book.fb2", nil, FormatFB2},
		{"markdown", "README.md", nil, FormatMarkdown},
		{"xhtml", "ch.xhtml", nil, FormatHTML},
		{"raw mobi", "book.rawml", nil, FormatMobi},
		{"epub by content", "book.bin", epub, FormatEPUB},
		{"fb2 by content", "book", []byte(`<?xml version="1.0"?><FictionBook xmlns="x">`), FormatFB2},
		{"mobi by content", "book", []byte(`<html><body><mbp:pagebreak/></body></html>`), FormatMobi},
		{"html by content", "page", []byte(`<!DOCTYPE html><html>`), FormatHTML},
		{"unknown", "data.bin", []byte{1, 2, 3}, FormatUnknown},
		{"unknown without data", "data.bin", nil, FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.file, tt.data); got != tt.want {
				t.Errorf("Detect(%q) = %s, want %s", tt.file, got, tt.want)
			}
		})
	}
}

func TestFormatString(t *testing.T) {
	if FormatPDF.String() != "pdf" || Format(100).String() != "unknown" {
		t.Errorf("unexpected names %s %s", FormatPDF, Format(100))
	}
}

func TestTitleFromName(t *testing.T) {
	for in, want := range map[string]string{
		"/books/War and Peace.fb2.zip": "War and Peace",
		"notes.md":                     "notes",
		"archive/v1.2.txt":             "v1.2",
		"plain":                        "plain",
	} {
		if got := titleFromName(in); got != want {
			t.Errorf("titleFromName(%q) = %q, want %q", in, got, want)
		}
	}
}
