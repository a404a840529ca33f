package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"reflow/bookmarks"
	"reflow/config"
	"reflow/export"
	"reflow/layout"
	"reflow/preview"
	"reflow/state"
)

// prepare applies flags shared by commands which read books.
func prepare(ctx context.Context, cmd *cli.Command, log *zap.Logger) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	env := state.EnvFromContext(ctx)

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return "", errors.New("no input source has been specified")
	}
	src, err := filepath.Abs(src)
	if err != nil {
		return "", err
	}

	env.Overwrite = cmd.Bool("overwrite")

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	if cp := cmd.String("force-zip-cp"); len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.CodePage == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}
	return src, nil
}

// withSession opens book named by the first argument and calls fn with it.
// Panic while processing a book is turned into error.
func withSession(ctx context.Context, cmd *cli.Command, name string, fn func(s *Session, log *zap.Logger) error) (rerr error) {
	env := state.EnvFromContext(ctx)
	log := env.Log.Named(name)

	src, err := prepare(ctx, cmd, log)
	if err != nil {
		return err
	}

	log.Debug("Processing starting", zap.String("source", src))
	defer func(start time.Time) {
		// NOTE: image and font libraries may panic on malformed input, we want
		// an error instead
		if r := recover(); r != nil {
			log.Error("Processing ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("source", src), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("processing panic: %v", r)
		} else {
			log.Debug("Processing completed", zap.Duration("elapsed", time.Since(start)), zap.String("source", src))
		}
	}(time.Now())

	s, err := Open(ctx, src, log)
	if err != nil {
		return fmt.Errorf("unable to open book (%s): %w", src, err)
	}
	defer s.Close()

	if env.Rpt != nil {
		env.Rpt.StoreData(fmt.Sprintf("%s-%s.txt", name, s.Book.ID), []byte(s.Doc.String()))
	}
	return fn(s, log)
}

// pages returns requested page range, page 0 means all pages.
func pages(s *Session, page int) (int, int, error) {
	if page == 0 {
		return 1, s.Doc.PageCount(), nil
	}
	if err := s.CheckPage(page); err != nil {
		return 0, 0, err
	}
	return page, page, nil
}

func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// destination returns absolute output directory from the second argument,
// current directory when absent.
func destination(cmd *cli.Command) (string, error) {
	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		var err error
		if dst, err = os.Getwd(); err != nil {
			return "", fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	return filepath.Abs(dst)
}

// create opens output file honoring overwrite setting.
func create(ctx context.Context, name string, log *zap.Logger) (*os.File, error) {
	env := state.EnvFromContext(ctx)
	if _, err := os.Stat(name); err == nil {
		if !env.Overwrite {
			return nil, fmt.Errorf("output file already exists: %s", name)
		}
		log.Warn("Overwriting existing file", zap.String("file", name))
	} else if !os.IsNotExist(err) {
		return nil, err
	} else if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return nil, fmt.Errorf("unable to create output directory: %w", err)
	}
	return os.Create(name)
}

// Layout prints summary of the formatted book, or complete page dump.
func Layout(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "layout", func(s *Session, log *zap.Logger) error {
		w := output(cmd)
		if cmd.Bool("dump") {
			_, err := io.WriteString(w, s.Doc.String())
			return err
		}
		_, err := fmt.Fprintf(w, "%s\npages: %d\nfonts: %d\nanchors: %d\ntoc entries: %d\npartial: %t\n",
			s.Book, s.Doc.PageCount(), len(s.Doc.Fonts()), len(s.Doc.Anchors()), s.TocCount(), s.Doc.Partial())
		return err
	})
}

// Text prints text of requested pages, optionally one sentence per line.
func Text(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "text", func(s *Session, log *zap.Logger) error {
		first, last, err := pages(s, cmd.Int("page"))
		if err != nil {
			return err
		}
		w := output(cmd)

		if !cmd.Bool("sentences") {
			for n := first; n <= last; n++ {
				out, _, err := s.PageText(n, cmd.String("separator"))
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "--- page %d ---\n%s\n", n, out); err != nil {
					return err
				}
			}
			return nil
		}

		sp := s.Splitter(log)
		for n := first; n <= last; n++ {
			list, err := s.PageSentences(n, sp)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "--- page %d ---\n", n); err != nil {
				return err
			}
			for _, sentence := range list {
				if _, err := fmt.Fprintln(w, sentence); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Toc prints table of contents with resolved pages.
func Toc(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "toc", func(s *Session, log *zap.Logger) error {
		if s.Toc == nil {
			log.Info("Book has no table of contents", zap.String("book", s.Book.Source))
			return nil
		}
		_, err := io.WriteString(output(cmd), s.Toc.String())
		return err
	})
}

func describe(d *layout.Destination) string {
	switch {
	case d == nil:
		return "not found"
	case d.IsExternal():
		return "external " + d.URL
	default:
		return fmt.Sprintf("page %d at %s", d.Page, d.Box)
	}
}

// Resolve prints destination of link target given as second argument. With
// --page target is resolved as a link found on that page.
func Resolve(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "resolve", func(s *Session, log *zap.Logger) error {
		target := cmd.Args().Get(1)
		if len(target) == 0 {
			return errors.New("no link target has been specified")
		}
		var d *layout.Destination
		if n := cmd.Int("page"); n > 0 {
			if err := s.CheckPage(n); err != nil {
				return err
			}
			d = s.Doc.ResolveLink(n, target)
		} else {
			d = s.Doc.ResolveDestination(target)
		}
		_, err := fmt.Fprintf(output(cmd), "%s: %s\n", target, describe(d))
		return err
	})
}

// Render rasterizes requested pages into image files.
func Render(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "render", func(s *Session, log *zap.Logger) error {
		env := state.EnvFromContext(ctx)
		conf := env.Cfg.Preview
		if f := cmd.String("format"); len(f) > 0 {
			format, err := config.ParsePreviewFormat(f)
			if err != nil {
				log.Warn("Unknown preview format requested, using configured one", zap.Error(err))
			} else {
				conf.Format = format
			}
		}

		dst, err := destination(cmd)
		if err != nil {
			return err
		}
		first, last, err := pages(s, cmd.Int("page"))
		if err != nil {
			return err
		}
		opts, err := preview.OptionsFromConfig(&env.Cfg.Layout, &conf)
		if err != nil {
			return err
		}
		r := preview.NewRenderer(s.Metrics, opts, log)

		for n := first; n <= last; n++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := r.Render(s.Doc, n)
			if err != nil {
				return err
			}
			name := s.OutputName(conf.OutputNameTemplate, n, dst, conf.Format.Ext(), log)
			if err := writeFile(ctx, name, log, func(w io.Writer) error {
				return preview.Encode(w, img, conf.Format, conf.JPEGQuality, int(float64(env.Cfg.Layout.DPI)*opts.Scale))
			}); err != nil {
				return err
			}
			log.Debug("Page rendered", zap.Int("page", n), zap.String("file", name))
		}
		log.Info("Pages rendered", zap.Int("count", last-first+1), zap.String("destination", dst))
		return nil
	})
}

func writeFile(ctx context.Context, name string, log *zap.Logger, fn func(w io.Writer) error) (err error) {
	f, err := create(ctx, name, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(f)
}

// Export writes page model of the formatted book.
func Export(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "export", func(s *Session, log *zap.Logger) error {
		env := state.EnvFromContext(ctx)
		format := env.Cfg.Export.Format
		if f := cmd.String("format"); len(f) > 0 {
			var err error
			if format, err = config.ParseExportFormat(f); err != nil {
				return err
			}
		}

		dst, err := destination(cmd)
		if err != nil {
			return err
		}
		name := filepath.Join(dst, config.CleanFileName(s.values("", 0).SourceFile)+format.Ext())
		m := export.NewModel(s.Doc, s.Info(), s.Toc)
		if err := writeFile(ctx, name, log, func(w io.Writer) error { return export.Write(w, m, format) }); err != nil {
			return err
		}
		log.Info("Book exported", zap.String("file", name), zap.Stringer("format", format), zap.Int("pages", len(m.Pages)))
		return nil
	})
}

func openBookmarks(ctx context.Context, log *zap.Logger) (*bookmarks.Store, error) {
	return bookmarks.Open(state.EnvFromContext(ctx).Cfg.Bookmarks.Database, log)
}

// BookmarkSave stores position of the page under a name.
func BookmarkSave(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "bookmark", func(s *Session, log *zap.Logger) error {
		name := cmd.Args().Get(1)
		if len(name) == 0 {
			return errors.New("no bookmark name has been specified")
		}
		n := max(cmd.Int("page"), 1)
		if err := s.CheckPage(n); err != nil {
			return err
		}
		store, err := openBookmarks(ctx, log)
		if err != nil {
			return err
		}
		defer store.Close()

		b := bookmarks.At(s.Doc, s.Book.ID.String(), name, n)
		b.Note = cmd.String("note")
		if err := store.Save(ctx, b); err != nil {
			return err
		}
		log.Info("Bookmark saved", zap.String("name", name), zap.Int("page", n), zap.Int("reparse", b.Reparse))
		return nil
	})
}

// BookmarkList prints bookmarks of the book with pages in the current layout.
func BookmarkList(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "bookmark", func(s *Session, log *zap.Logger) error {
		store, err := openBookmarks(ctx, log)
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List(ctx, s.Book.ID.String())
		if err != nil {
			return err
		}
		w := output(cmd)
		for _, b := range list {
			if _, err := fmt.Fprintf(w, "%s\tpage %d\t%s\t%s\n", b.Name, b.Page(s.Doc), b.Updated.Format(time.DateTime), b.Note); err != nil {
				return err
			}
		}
		return nil
	})
}

// BookmarkGoto prints page bookmark points to and its text.
func BookmarkGoto(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "bookmark", func(s *Session, log *zap.Logger) error {
		store, err := openBookmarks(ctx, log)
		if err != nil {
			return err
		}
		defer store.Close()

		b, err := store.Get(ctx, s.Book.ID.String(), cmd.Args().Get(1))
		if err != nil {
			return err
		}
		n := b.Page(s.Doc)
		out, _, err := s.PageText(n, " ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(output(cmd), "--- page %d ---\n%s\n", n, out)
		return err
	})
}

// BookmarkDelete removes bookmark.
func BookmarkDelete(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "bookmark", func(s *Session, log *zap.Logger) error {
		store, err := openBookmarks(ctx, log)
		if err != nil {
			return err
		}
		defer store.Close()

		return store.Delete(ctx, s.Book.ID.String(), cmd.Args().Get(1))
	})
}
