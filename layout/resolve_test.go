package layout

import (
	"strings"
	"testing"

	"reflow/markup"
)

const mergedBook = `<pagebreak src="Text/doc1.xhtml"/><p id="x">one</p><p id="only1">first</p>` +
	`<pagebreak src="Text/doc2.xhtml"/><p>two</p><p id="x">three</p>` +
	`<pagebreak src="Text/My%20Doc.xhtml"/><p id="y">four</p>`

func TestResolveMergedScoping(t *testing.T) {
	doc := formatString(t, mergedBook, testConfig(t))
	if doc.PageCount() != 3 {
		t.Fatalf("expected 3 pages, got %d", doc.PageCount())
	}

	tests := []struct {
		target string
		page   int
	}{
		{"doc2.xhtml#x", 2},
		{"Text/doc1.xhtml#x", 1},
		{"TEXT/DOC2.XHTML#X", 2},
		{"OEBPS/../Text/doc2.xhtml#x", 2},
		{"x", 1},
		{"#x", 1},
		{"doc2.xhtml", 2},
		{"doc2.xhtml#missing", 2},
		{"doc2.xhtml#only1", 2},
		{"nowhere.xhtml#only1", 1},
		{"My Doc.xhtml#y", 3},
		{"my%20doc.xhtml", 3},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			dest := doc.ResolveDestination(tt.target)
			if dest == nil {
				t.Fatalf("expected page %d, got nothing", tt.page)
			}
			if dest.Page != tt.page {
				t.Fatalf("expected page %d, got %d", tt.page, dest.Page)
			}
		})
	}

	for _, target := range []string{"", "missing", "c.xhtml", "#"} {
		if dest := doc.ResolveDestination(target); dest != nil {
			t.Errorf("%q: expected no destination, got %+v", target, dest)
		}
	}
	// partial file name does not match a base, falls back to global search
	if dest := doc.ResolveDestination("oc2.xhtml#x"); dest == nil || dest.Page != 1 {
		t.Errorf("expected global fallback to page 1, got %+v", dest)
	}
}

func TestResolveSingleDocument(t *testing.T) {
	doc := formatString(t, `<p>intro</p><pagebreak/><p id="target">here</p>`, testConfig(t))
	bare := doc.ResolveDestination("target")
	qualified := doc.ResolveDestination("book.html#target")
	if bare == nil || qualified == nil {
		t.Fatalf("expected both to resolve, got %+v and %+v", bare, qualified)
	}
	if bare.Page != qualified.Page || bare.Page != 2 {
		t.Fatalf("expected page 2 for both, got %d and %d", bare.Page, qualified.Page)
	}
	if bare.Box.H == 0 {
		t.Errorf("expected anchor box with line height, got %v", bare.Box)
	}
}

func TestResolveExternal(t *testing.T) {
	doc := formatString(t, `<p>x</p>`, testConfig(t))
	for _, target := range []string{"https://example.com/a#b", "mailto:someone@example.com", "ftp://host/file"} {
		dest := doc.ResolveDestination(target)
		if !dest.IsExternal() || dest.URL != target {
			t.Errorf("%q: expected external destination, got %+v", target, dest)
		}
	}
}

func TestResolveLinkRelative(t *testing.T) {
	doc := formatString(t, mergedBook, testConfig(t))

	if dest := doc.ResolveLink(2, "#x"); dest == nil || dest.Page != 2 {
		t.Errorf("fragment link on page 2 should stay in doc2, got %+v", dest)
	}
	if dest := doc.ResolveLink(1, "#x"); dest == nil || dest.Page != 1 {
		t.Errorf("fragment link on page 1 should stay in doc1, got %+v", dest)
	}
	if dest := doc.ResolveLink(1, "doc2.xhtml#x"); dest == nil || dest.Page != 2 {
		t.Errorf("relative link should resolve against Text/, got %+v", dest)
	}
	if dest := doc.ResolveLink(3, "../Text/doc1.xhtml"); dest == nil || dest.Page != 1 {
		t.Errorf("parent relative link failed, got %+v", dest)
	}
	if got := doc.Base(2); got != "Text/doc2.xhtml" {
		t.Errorf("expected base of page 2 Text/doc2.xhtml, got %q", got)
	}
}

func TestPageForReparse(t *testing.T) {
	doc := formatString(t, mergedBook, testConfig(t))

	tests := []struct {
		marker string
		page   int
	}{
		{"one", 1},
		{"three", 2},
		{"four", 3},
	}
	for _, tt := range tests {
		if got := doc.PageForReparse(strings.Index(mergedBook, tt.marker)); got != tt.page {
			t.Errorf("%s: expected page %d, got %d", tt.marker, tt.page, got)
		}
	}
	if got := doc.PageForReparse(0); got != 1 {
		t.Errorf("expected first page for offset 0, got %d", got)
	}
	if got := doc.PageForReparse(len(mergedBook) * 2); got != 3 {
		t.Errorf("expected last page past the end, got %d", got)
	}

	dest := doc.ResolveFilepos(strings.Index(mergedBook, "three"))
	if dest == nil || dest.Page != 2 || dest.Box.Y == 0 {
		t.Errorf("expected second line of page 2, got %+v", dest)
	}
}

func TestPageForReparseLinkAcrossPages(t *testing.T) {
	src := `<p>intro</p><a href="#x">` + strings.Repeat("<p>para</p>", 12) + `</a>`
	doc := formatString(t, src, testConfig(t))
	if doc.PageCount() < 3 {
		t.Fatalf("expected link to span 3 pages, got %d:\n%s", doc.PageCount(), doc)
	}

	prev := -1
	for n := 1; n <= doc.PageCount(); n++ {
		p := doc.Page(n)
		if p.Reparse < prev {
			t.Errorf("page %d: reparse %d goes back from %d", n, p.Reparse, prev)
		}
		prev = p.Reparse

		rs := runs(p)
		if len(rs) == 0 {
			t.Fatalf("page %d has no text", n)
		}
		if got := doc.PageForReparse(rs[0].Reparse); got != n {
			t.Errorf("page %d: first run at %d maps to page %d", n, rs[0].Reparse, got)
		}
		if dest := doc.ResolveFilepos(rs[0].Reparse); dest == nil || dest.Page != n {
			t.Errorf("page %d: filepos %d resolves to %+v", n, rs[0].Reparse, dest)
		}
	}
	if got := doc.PageForReparse(strings.Index(src, "para")); got != 1 {
		t.Errorf("expected first paragraph of the link on page 1, got %d", got)
	}
}

func TestAnchorTable(t *testing.T) {
	doc := formatString(t, mergedBook, testConfig(t))
	anchors := doc.Anchors()

	var bases int
	for _, a := range anchors {
		if a.IsBase {
			bases++
		}
		if a.ID == "x" && a.Page == 2 && a.Base != "Text/doc2.xhtml" {
			t.Errorf("anchor x on page 2 belongs to %q", a.Base)
		}
	}
	if bases != 3 {
		t.Errorf("expected 3 base anchors, got %d", bases)
	}
}

func TestDocumentAccessors(t *testing.T) {
	doc, err := Format(markup.TokenizeString(`<p>a b</p>`), testConfig(t))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}

	p := doc.Page(1)
	p.Instructions[0].Kind = InstrLine
	if doc.Page(1).Instructions[0].Kind == InstrLine {
		t.Error("Page must return a copy")
	}

	doc.UpdateFonts(func(f Font) Font { f.Size *= 2; return f })
	if got := doc.Font(0).Size; got != 20 {
		t.Errorf("expected updated font size 20, got %v", got)
	}
	if !strings.Contains(doc.String(), "page 1") {
		t.Error("debug dump should list pages")
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic for page out of range")
			}
		}()
		doc.Page(2)
	}()

	doc.Close()
	if doc.PageCount() != 0 {
		t.Error("closed document must have no pages")
	}
}
