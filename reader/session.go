// Package reader ties loaded books to formatted documents and implements
// program commands on top of them.
package reader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"reflow/book"
	"reflow/config"
	"reflow/export"
	"reflow/layout"
	"reflow/state"
)

// LayoutConfig converts configuration into formatter settings for the book.
// Dialect "auto" (or empty) uses the one book loader picked.
func LayoutConfig(conf *config.LayoutConfig, b *book.Book, m layout.FontMetrics, log *zap.Logger) (layout.Config, error) {
	align, err := layout.ParseAlign(conf.Align)
	if err != nil {
		return layout.Config{}, err
	}

	dialect := b.Dialect
	if name := strings.TrimSpace(conf.Dialect); len(name) > 0 && !strings.EqualFold(name, "auto") {
		if dialect, err = layout.DialectByName(name); err != nil {
			return layout.Config{}, err
		}
	}

	w, h := conf.PageSize()
	cfg := layout.Config{
		Width:        w,
		Height:       h,
		FontFamily:   conf.FontFamily,
		FontSize:     conf.FontSize,
		Align:        align,
		LineGap:      conf.LineGap,
		ParagraphGap: conf.ParagraphGap,
		HeadingGap:   conf.HeadingGap,
		Indent:       conf.Indent,
		Dialect:      dialect,
		Metrics:      m,
		Log:          log,
	}
	if b.Images != nil {
		cfg.Images = b.Images
	}
	return cfg, nil
}

// Session is a book formatted for the configured page.
type Session struct {
	Book    *book.Book
	Doc     *layout.Document
	Toc     *layout.TocItem // nil when book has no outline
	Metrics *layout.OpenTypeMetrics
}

// Open loads and formats book from file.
func Open(ctx context.Context, path string, log *zap.Logger) (*Session, error) {
	b, err := book.Open(ctx, path, log)
	if err != nil {
		return nil, err
	}
	return New(ctx, b, log)
}

// New formats loaded book.
func New(ctx context.Context, b *book.Book, log *zap.Logger) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env := state.EnvFromContext(ctx)

	m, err := env.Metrics()
	if err != nil {
		return nil, fmt.Errorf("unable to prepare fonts: %w", err)
	}
	cfg, err := LayoutConfig(&env.Cfg.Layout, b, m, log)
	if err != nil {
		return nil, fmt.Errorf("bad layout configuration: %w", err)
	}

	start := time.Now()
	doc, err := layout.Format(b.Tokens(), cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to format %s: %w", b.Source, err)
	}
	if doc.Partial() {
		log.Warn("Markup is malformed, book was formatted partially", zap.String("book", b.Source))
	}
	s := &Session{Book: b, Doc: doc, Toc: layout.BuildTocTree(b.OutlineTokens(), doc), Metrics: m}

	log.Info("Book formatted",
		zap.String("book", b.Source),
		zap.Int("pages", doc.PageCount()),
		zap.Int("toc", s.TocCount()),
		zap.Duration("elapsed", time.Since(start)))
	return s, nil
}

// TocCount returns number of TOC entries.
func (s *Session) TocCount() int {
	if s.Toc == nil {
		return 0
	}
	return s.Toc.Count()
}

// Info describes the book for exported models.
func (s *Session) Info() export.Info {
	return export.Info{
		ID:       s.Book.ID.String(),
		Title:    s.Book.Title,
		Authors:  s.Book.Authors,
		Language: s.Book.Language,
		Source:   s.Book.Source,
	}
}

// CheckPage returns error when page n does not exist.
func (s *Session) CheckPage(n int) error {
	if count := s.Doc.PageCount(); n < 1 || n > count {
		return fmt.Errorf("page %d is out of range 1..%d", n, count)
	}
	return nil
}

func (s *Session) Close() {
	s.Doc.Close()
}
