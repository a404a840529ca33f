package reader

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"reflow/book"
	"reflow/config"
	"reflow/layout"
	"reflow/state"
)

const guide = "# Guide\n\nSome *text* here. Second sentence follows.\n\n## Install Steps\n\nRun it.\n"

func testContext(t *testing.T) (context.Context, *config.Config) {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration: %v", err)
	}
	return state.ContextWith(context.Background(), &state.LocalEnv{Cfg: cfg}), cfg
}

func newSession(t *testing.T) *Session {
	t.Helper()
	ctx, _ := testContext(t)
	log := zaptest.NewLogger(t)

	b, err := book.Load(ctx, filepath.Join("books", "guide.md"), []byte(guide), log)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s, err := New(ctx, b, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestLayoutConfig(t *testing.T) {
	_, cfg := testContext(t)
	log := zaptest.NewLogger(t)
	b := &book.Book{Dialect: layout.Mobi}
	m := layout.NewOpenTypeMetrics()

	t.Run("auto", func(t *testing.T) {
		conf := cfg.Layout
		conf.Dialect = "auto"
		lc, err := LayoutConfig(&conf, b, m, log)
		if err != nil {
			t.Fatal(err)
		}
		if lc.Dialect != layout.Mobi {
			t.Errorf("expected book dialect, got %v", lc.Dialect)
		}
		w, h := conf.PageSize()
		if lc.Width != w || lc.Height != h || lc.Images != nil {
			t.Errorf("unexpected config %+v", lc)
		}
	})

	t.Run("explicit", func(t *testing.T) {
		conf := cfg.Layout
		conf.Dialect = "fb2"
		lc, err := LayoutConfig(&conf, b, m, log)
		if err != nil {
			t.Fatal(err)
		}
		if lc.Dialect != layout.FictionBook {
			t.Errorf("expected fictionbook dialect, got %v", lc.Dialect)
		}
	})

	t.Run("errors", func(t *testing.T) {
		conf := cfg.Layout
		conf.Dialect = "troff"
		if _, err := LayoutConfig(&conf, b, m, log); err == nil {
			t.Error("expected dialect error")
		}
		conf = cfg.Layout
		conf.Align = "sideways"
		if _, err := LayoutConfig(&conf, b, m, log); err == nil {
			t.Error("expected alignment error")
		}
	})
}

func TestSession(t *testing.T) {
	s := newSession(t)

	if s.Doc.PageCount() < 1 || s.TocCount() != 2 {
		t.Fatalf("unexpected session: %d pages, %d toc entries", s.Doc.PageCount(), s.TocCount())
	}
	info := s.Info()
	if info.Title != "Guide" || len(info.ID) == 0 {
		t.Errorf("unexpected info %+v", info)
	}
	if err := s.CheckPage(0); err == nil {
		t.Error("page 0 accepted")
	}
	if err := s.CheckPage(s.Doc.PageCount() + 1); err == nil {
		t.Error("page past the end accepted")
	}

	out, rects, err := s.PageText(1, "\n")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Some text here.") || len(rects) != len([]rune(out)) {
		t.Errorf("unexpected text %q (%d rects)", out, len(rects))
	}
	if n, err := s.PageWords(1); err != nil || n < 9 {
		t.Errorf("PageWords = %d, %v", n, err)
	}

	sentences, err := s.PageSentences(1, s.Splitter(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.ContainsFunc(sentences, func(s string) bool { return strings.HasSuffix(s, "Second sentence follows.") }) {
		t.Errorf("unexpected sentences %q", sentences)
	}
	if _, err := s.PageSentences(99, nil); err == nil {
		t.Error("expected page error")
	}
}

func TestOutputName(t *testing.T) {
	s := newSession(t)
	log := zaptest.NewLogger(t)
	dst := filepath.Join("out", "pages")

	for _, tc := range []struct {
		name, tmpl, want string
	}{
		{"default", "", filepath.Join(dst, "guide-0002.png")},
		{"subdirs", `{{ .Format }}/{{ .Title | slug }}-{{ printf "%03d" .Page }}`, filepath.Join(dst, "markdown", "guide-002.png")},
		{"dots", `../{{ .SourceFile }}/./p{{ .Page }}`, filepath.Join(dst, "guide", "p2.png")},
		{"broken", `{{ .Title`, filepath.Join(dst, "guide-0002.png")},
		{"unknown field", `{{ .Publisher }}`, filepath.Join(dst, "guide-0002.png")},
		{"empty", `{{ "" }}`, filepath.Join(dst, "guide-0002.png")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.OutputName(tc.tmpl, 2, dst, ".png", log); got != tc.want {
				t.Errorf("OutputName(%q) = %q, want %q", tc.tmpl, got, tc.want)
			}
		})
	}
}

func TestSplitPath(t *testing.T) {
	sep := string(filepath.Separator)
	for _, tc := range []struct {
		in   string
		want []string
	}{
		{"a" + sep + "b" + sep + "c", []string{"a", "b", "c"}},
		{sep + "a" + sep + ".." + sep + "b" + sep, []string{"a", "b"}},
		{".", []string{}},
		{"", []string{}},
	} {
		if got := splitPath(tc.in); !slices.Equal(got, tc.want) {
			t.Errorf("splitPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
