// Package book loads documents of supported formats into a single markup
// stream the layout package can format, together with their images and
// outline.
package book

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"reflow/archive"
	"reflow/config"
	"reflow/layout"
	"reflow/markup"
	"reflow/state"
)

// namespace of name based book ids.
var namespace = uuid.MustParse("6f1c59f3-7a1e-4c55-9d0b-3e2a8f0b6d41")

// Book is a loaded document. Markup of multi file books (EPUB) is merged,
// every chapter is preceded by pagebreak element carrying chapter path.
type Book struct {
	ID       uuid.UUID
	Title    string
	Authors  []string
	Language string
	Format   Format
	Source   string

	Markup  []byte
	XML     bool // markup has to be tokenized as XML
	Dialect *layout.Dialect
	Images  *ImageStore

	Outline    []byte // NCX or XHTML nav markup, may be empty
	OutlineXML bool
}

// Tokens returns markup token stream of the book.
func (b *Book) Tokens() iter.Seq[markup.Token] {
	if b.XML {
		return markup.TokenizeBytes(b.Markup, markup.XML())
	}
	return markup.TokenizeBytes(b.Markup)
}

// OutlineTokens returns token stream of the outline, empty when book has
// none.
func (b *Book) OutlineTokens() iter.Seq[markup.Token] {
	if len(b.Outline) == 0 {
		return func(func(markup.Token) bool) {}
	}
	if b.OutlineXML {
		return markup.TokenizeBytes(b.Outline, markup.XML())
	}
	return markup.TokenizeBytes(b.Outline)
}

// Tag returns parsed language of the book, language.Und when unknown.
func (b *Book) Tag() language.Tag {
	tag, err := language.Parse(strings.TrimSpace(b.Language))
	if err != nil {
		return language.Und
	}
	return tag
}

func (b *Book) String() string {
	return fmt.Sprintf("%s %q (%s)", b.Format, b.Title, b.ID)
}

type loader func(ctx context.Context, b *Book, data []byte, log *zap.Logger) error

var loaders = map[Format]loader{
	FormatEPUB:     loadEPUB,
	FormatFB2:      loadFB2,
	FormatHTML:     loadHTML,
	FormatMarkdown: loadMarkdown,
	FormatText:     loadText,
	FormatMobi:     loadMobi,
	FormatDOCX:     loadDOCX,
	FormatPDF:      loadPDF,
}

// Load parses book from data, name is used for format detection and as
// fallback title.
func Load(ctx context.Context, name string, data []byte, log *zap.Logger) (*Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env := state.EnvFromContext(ctx)

	format := Detect(name, data)
	load, ok := loaders[format]
	if !ok {
		return nil, fmt.Errorf("unsupported book format: %s", name)
	}

	log = log.With(zap.String("book", filepath.Base(name)), zap.Stringer("format", format))
	b := &Book{
		Format:  format,
		Source:  name,
		Dialect: layout.Reflow,
		Images:  NewImageStore(imagesConfig(env), log),
	}
	if err := load(ctx, b, data, log); err != nil {
		return nil, fmt.Errorf("unable to load %s: %w", format, err)
	}
	if len(strings.TrimSpace(b.Title)) == 0 {
		b.Title = titleFromName(name)
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.NewSHA1(namespace, data)
	}
	log.Debug("Book loaded",
		zap.Stringer("id", b.ID),
		zap.String("title", b.Title),
		zap.Int("markup", len(b.Markup)),
		zap.Int("images", b.Images.Len()),
		zap.Bool("outline", len(b.Outline) > 0))
	return b, nil
}

// Open loads book from file. Books inside zip archives are addressed as
// "archive.zip/path/inside/book.fb2", archive holding a single book may be
// given by itself.
func Open(ctx context.Context, name string, log *zap.Logger) (*Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env := state.EnvFromContext(ctx)

	file, inner, isArchive, err := archive.Split(name)
	if err != nil {
		return nil, err
	}

	if !isArchive {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("unable to read book: %w", err)
		}
		b, err := Load(ctx, file, data, log)
		if err != nil {
			return nil, err
		}
		switch b.Format {
		case FormatHTML, FormatMarkdown:
			b.Images.SetDir(filepath.Dir(file))
		}
		return b, nil
	}

	if len(inner) == 0 {
		if format := Detect(file, nil); format == FormatEPUB || format == FormatDOCX {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("unable to read book: %w", err)
			}
			return Load(ctx, file, data, log)
		}
	}

	r, err := archive.Open(file, env.CodePage)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if len(inner) == 0 {
		var books []string
		for _, n := range r.Names() {
			if Detect(n, nil) != FormatUnknown {
				books = append(books, n)
			}
		}
		if len(books) != 1 {
			return nil, fmt.Errorf("archive %s holds %d books, select one as %s", file, len(books), filepath.Join(file, "<path inside archive>"))
		}
		inner = books[0]
		log.Debug("Using single book from archive", zap.String("archive", file), zap.String("book", inner))
	}

	data, err := r.ReadFile(inner)
	if err != nil {
		return nil, err
	}
	b, err := Load(ctx, inner, data, log)
	if err != nil {
		return nil, err
	}
	b.Source = filepath.Join(file, filepath.FromSlash(inner))
	return b, nil
}

func imagesConfig(env *state.LocalEnv) *config.ImagesConfig {
	if env.Cfg == nil {
		return nil
	}
	return &env.Cfg.Images
}

func titleFromName(name string) string {
	base := path.Base(filepath.ToSlash(name))
	for {
		ext := path.Ext(base)
		if len(ext) == 0 || ext == base {
			break
		}
		if _, ok := extFormats[strings.ToLower(ext)]; !ok && !strings.EqualFold(ext, ".zip") {
			break
		}
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
