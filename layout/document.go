package layout

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/maruel/natural"

	"reflow/utils/debug"
)

// Document is the result of formatting: pages, anchor table and fonts they
// refer to. Page content is never modified after Format returns, the font
// table may be adjusted with UpdateFonts. Every method holds document lock for
// the duration of the call, so Document can be shared between goroutines.
//
// Text of instructions is borrowed from the arena owned by the document and
// is invalid after Close.
type Document struct {
	mu      sync.Mutex
	pages   []*Page
	bases   []string
	anchors []AnchorEntry
	fonts   []Font
	arena   *Arena
	metrics FontMetrics
	partial bool
}

func newDocument(pages []*Page, fonts []Font, arena *Arena, metrics FontMetrics, partial bool) *Document {
	anchors, bases := extractAnchors(pages)
	return &Document{
		pages:   pages,
		bases:   bases,
		anchors: anchors,
		fonts:   slices.Clone(fonts),
		arena:   arena,
		metrics: metrics,
		partial: partial,
	}
}

// PageCount returns number of pages.
func (d *Document) PageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.pages)
}

// Page returns copy of page n (1-based). Asking for a page which does not
// exist is a programming error.
func (d *Document) Page(n int) Page {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.page(n)
	return Page{Instructions: slices.Clone(p.Instructions), Reparse: p.Reparse}
}

func (d *Document) page(n int) *Page {
	if n < 1 || n > len(d.pages) {
		panic(fmt.Sprintf("page %d out of range [1, %d]", n, len(d.pages)))
	}
	return d.pages[n-1]
}

// Partial reports whether formatting stopped early on malformed markup.
func (d *Document) Partial() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.partial
}

// Base returns path of the sub-document page n belongs to, empty when
// document was not merged from several.
func (d *Document) Base(n int) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.page(n)
	return d.bases[n-1]
}

// Anchors returns copy of the anchor table in page order.
func (d *Document) Anchors() []AnchorEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	return slices.Clone(d.anchors)
}

// Font returns font referenced by instructions.
func (d *Document) Font(ref FontRef) Font {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ref < 0 || int(ref) >= len(d.fonts) {
		return Font{}
	}
	return d.fonts[ref]
}

// Fonts returns copy of the font table.
func (d *Document) Fonts() []Font {
	d.mu.Lock()
	defer d.mu.Unlock()

	return slices.Clone(d.fonts)
}

// UpdateFonts replaces every font in the table with result of fn, for example
// when rendering resolution changes. Layout of pages is not affected.
func (d *Document) UpdateFonts(fn func(Font) Font) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.fonts {
		d.fonts[i] = fn(d.fonts[i])
	}
}

// PageForReparse returns number of the page containing markup at offset: the
// last page which starts at or before it. Returns 0 for a document without
// pages.
func (d *Document) PageForReparse(offset int) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.pageForReparse(offset)
}

func (d *Document) pageForReparse(offset int) int {
	if len(d.pages) == 0 {
		return 0
	}
	i := sort.Search(len(d.pages), func(i int) bool { return d.pages[i].Reparse > offset })
	return max(i, 1)
}

// Close releases memory held by the document. Document has no pages
// afterwards.
func (d *Document) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pages, d.bases, d.anchors = nil, nil, nil
	if d.arena != nil {
		d.arena.Release()
		d.arena = nil
	}
}

// String dumps document structure for debugging.
func (d *Document) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	tw := debug.NewTreeWriter().WithTextLimit(64)
	tw.Line(0, "Document: %d pages, %d fonts, %d anchors, partial=%t", len(d.pages), len(d.fonts), len(d.anchors), d.partial)
	for i, f := range d.fonts {
		tw.Line(1, "font %d: %s", i, f)
	}
	for i, p := range d.pages {
		tw.Line(1, "page %d: reparse=%d base=%q", i+1, p.Reparse, d.bases[i])
		for _, in := range p.Instructions {
			switch in.Kind {
			case InstrTextRun, InstrAnchor, InstrLinkStart:
				tw.TextBlock(2, in.Kind.String()+" "+in.Box.String(), string(in.Data))
			case InstrSetFont:
				tw.Line(2, "%s %d", in.Kind, in.Font)
			case InstrImage:
				tw.Line(2, "%s %s %s", in.Kind, in.Box, in.Data)
			default:
				tw.Line(2, "%s %s", in.Kind, in.Box)
			}
		}
	}

	ids := make([]string, 0, len(d.anchors))
	pages := make(map[string][]int, len(d.anchors))
	for _, a := range d.anchors {
		if len(a.ID) == 0 {
			continue
		}
		if _, ok := pages[a.ID]; !ok {
			ids = append(ids, a.ID)
		}
		pages[a.ID] = append(pages[a.ID], a.Page)
	}
	sort.Sort(natural.StringSlice(ids))
	tw.Line(1, "anchors:")
	for _, id := range ids {
		tw.Line(2, "%q -> %v", id, pages[id])
	}
	return tw.String()
}
