package book

import (
	"bytes"
	"path"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
)

// Format is a supported input format.
type Format int

const (
	FormatUnknown Format = iota
	FormatEPUB
	FormatFB2
	FormatHTML
	FormatMarkdown
	FormatText
	FormatMobi // raw Mobipocket markup
	FormatDOCX
	FormatPDF
)

var formatNames = [...]string{
	FormatUnknown:  "unknown",
	FormatEPUB:     "epub",
	FormatFB2:      "fb2",
	FormatHTML:     "html",
	FormatMarkdown: "markdown",
	FormatText:     "text",
	FormatMobi:     "mobi",
	FormatDOCX:     "docx",
	FormatPDF:      "pdf",
}

func (f Format) String() string {
	if f >= 0 && int(f) < len(formatNames) {
		return formatNames[f]
	}
	return formatNames[FormatUnknown]
}

var extFormats = map[string]Format{
	".epub":     FormatEPUB,
	".kepub":    FormatEPUB,
	".fb2":      FormatFB2,
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".xhtml":    FormatHTML,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".txt":      FormatText,
	".rawml":    FormatMobi,
	".docx":     FormatDOCX,
	".pdf":      FormatPDF,
}

// sniffLimit is how much of the content is examined by Detect.
const sniffLimit = 4096

// Detect returns book format by file name extension, when extension is not
// known content is sniffed. Data may be nil.
func Detect(name string, data []byte) Format {
	ext := strings.ToLower(path.Ext(filepath.ToSlash(name)))
	if f, ok := extFormats[ext]; ok {
		return f
	}
	if len(data) == 0 {
		return FormatUnknown
	}

	head := data[:min(len(data), sniffLimit)]
	switch {
	case filetype.IsType(head, matchers.TypeEpub):
		return FormatEPUB
	case filetype.IsType(head, matchers.TypeDocx):
		return FormatDOCX
	case filetype.IsType(head, matchers.TypePdf):
		return FormatPDF
	}

	lower := bytes.ToLower(head)
	switch {
	case bytes.Contains(lower, []byte("<fictionbook")):
		return FormatFB2
	case bytes.Contains(lower, []byte("<mbp:")):
		return FormatMobi
	case bytes.Contains(lower, []byte("<html")), bytes.Contains(lower, []byte("<!doctype html")):
		return FormatHTML
	}
	return FormatUnknown
}
