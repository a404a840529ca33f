package book

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"
	"go.uber.org/zap"
)

func loadDOCX(ctx context.Context, b *Book, data []byte, log *zap.Logger) error {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("unable to parse docx: %w", err)
	}

	var (
		out bytes.Buffer
		hs  []heading
	)
	for _, item := range doc.Document.Body.Items {
		if err := ctx.Err(); err != nil {
			return err
		}
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if len(text) == 0 {
			continue
		}
		level := docxHeadingLevel(para)
		if level == 0 {
			out.WriteString("<p>" + html.EscapeString(text) + "</p>\n")
			continue
		}
		if level == 1 && len(b.Title) == 0 {
			b.Title = text
		}
		id := "h" + strconv.Itoa(len(hs)+1)
		hs = append(hs, heading{level: level, id: id, title: text})
		fmt.Fprintf(&out, "<h%d id=%q>%s</h%d>\n", level, id, html.EscapeString(text), level)
	}
	b.Markup = out.Bytes()

	if b.Outline, err = navOutline(hs); err != nil {
		log.Warn("Unable to build outline", zap.Error(err))
	}
	b.OutlineXML = true
	return nil
}

// docxHeadingLevel returns heading level by paragraph style, 0 for body text.
// Both style ids ("Heading1") and names ("heading 1") are seen in the wild.
func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if rest, ok := strings.CutPrefix(style, "heading"); ok {
		if n, err := strconv.Atoi(rest); err == nil && n >= 1 && n <= 6 {
			return n
		}
	}
	if style == "title" {
		return 1
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
