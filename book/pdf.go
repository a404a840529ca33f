package book

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// PageAnchorPrefix starts ids of anchors placed at the beginning of every
// page of PDF documents, "page-3" resolves to the text of the third page.
const PageAnchorPrefix = "page-"

func loadPDF(ctx context.Context, b *Book, data []byte, log *zap.Logger) error {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("unable to parse pdf: %w", err)
	}

	var out bytes.Buffer
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn("Unable to extract page text", zap.Int("page", i), zap.Error(err))
			continue
		}
		fmt.Fprintf(&out, `<a id="%s%d"></a>`, PageAnchorPrefix, i)
		for _, para := range splitParagraphs(text) {
			out.WriteString("<p>" + html.EscapeString(para) + "</p>\n")
		}
	}
	b.Markup = out.Bytes()
	return nil
}

// splitParagraphs breaks extracted text on empty lines joining the rest.
func splitParagraphs(text string) []string {
	var (
		paras []string
		cur   []string
	)
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if len(line) == 0 {
			if len(cur) > 0 {
				paras = append(paras, strings.Join(cur, " "))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		paras = append(paras, strings.Join(cur, " "))
	}
	return paras
}
