package book

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

func loadMarkdown(_ context.Context, b *Book, data []byte, log *zap.Logger) error {
	src, err := toUTF8(data, "text/plain")
	if err != nil {
		return err
	}

	doc := md.Parser().Parse(text.NewReader(src))

	var hs []heading
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		title := collapse(string(h.Text(src)))
		if h.Level == 1 && len(b.Title) == 0 {
			b.Title = title
		}
		if v, ok := h.AttributeString("id"); ok {
			if id, ok := v.([]byte); ok && len(title) > 0 {
				hs = append(hs, heading{level: h.Level, id: string(id), title: title})
			}
		}
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return fmt.Errorf("unable to walk markdown: %w", err)
	}

	var out bytes.Buffer
	if err := md.Renderer().Render(&out, src, doc); err != nil {
		return fmt.Errorf("unable to render markdown: %w", err)
	}
	b.Markup = out.Bytes()

	if b.Outline, err = navOutline(hs); err != nil {
		log.Warn("Unable to build outline", zap.Error(err))
	}
	b.OutlineXML = true
	return nil
}
