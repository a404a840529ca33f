package book

import (
	"bufio"
	"bytes"
	"context"
	"html"
	"strings"

	"go.uber.org/zap"

	"reflow/layout"
	"reflow/markup"
)

func loadHTML(_ context.Context, b *Book, data []byte, log *zap.Logger) error {
	markupData, err := toUTF8(data, "text/html")
	if err != nil {
		return err
	}
	b.Markup = markupData

	title, lang, hs := scanHTML(markup.TokenizeBytes(markupData))
	b.Title, b.Language = title, lang
	if b.Outline, err = navOutline(hs); err != nil {
		log.Warn("Unable to build outline", zap.Error(err))
	}
	b.OutlineXML = true
	return nil
}

// loadMobi takes markup extracted from Mobipocket book. Images are
// addressed by record index and are not available.
func loadMobi(_ context.Context, b *Book, data []byte, _ *zap.Logger) error {
	markupData, err := toUTF8(data, "text/html")
	if err != nil {
		return err
	}
	b.Markup = markupData
	b.Dialect = layout.Mobi
	b.Title, b.Language, _ = scanHTML(markup.TokenizeBytes(markupData))
	return nil
}

// loadText turns plain text into paragraphs separated by empty lines.
func loadText(_ context.Context, b *Book, data []byte, _ *zap.Logger) error {
	textData, err := toUTF8(data, "text/plain")
	if err != nil {
		return err
	}

	var (
		out  bytes.Buffer
		para []string
	)
	flush := func() {
		if len(para) > 0 {
			out.WriteString("<p>")
			out.WriteString(html.EscapeString(strings.Join(para, " ")))
			out.WriteString("</p>\n")
			para = para[:0]
		}
	}
	sc := bufio.NewScanner(bytes.NewReader(textData))
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if len(line) == 0 {
			flush()
			continue
		}
		if len(b.Title) == 0 {
			b.Title = line
		}
		para = append(para, line)
	}
	flush()
	if err := sc.Err(); err != nil {
		return err
	}
	b.Markup = out.Bytes()
	return nil
}
