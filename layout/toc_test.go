package layout

import (
	"strings"
	"testing"

	"reflow/markup"
)

func titles(items []*TocItem) string {
	var out []string
	for _, it := range items {
		out = append(out, it.Title)
	}
	return strings.Join(out, ",")
}

func TestInsertTocItemLevels(t *testing.T) {
	root := &TocItem{Level: -1}
	for i, level := range []int{0, 1, 1, 2, 1, 0} {
		insertTocItem(root, &TocItem{Title: string(rune('A' + i)), Level: level})
	}

	if got := titles(root.Children); got != "A,F" {
		t.Fatalf("expected roots A,F, got %s", got)
	}
	a := root.Children[0]
	if got := titles(a.Children); got != "B,C,E" {
		t.Fatalf("expected A children B,C,E, got %s", got)
	}
	if got := titles(a.Children[1].Children); got != "D" {
		t.Fatalf("expected C child D, got %s", got)
	}
	if len(root.Children[1].Children) != 0 {
		t.Fatal("F must have no children")
	}
	if root.Count() != 6 {
		t.Fatalf("expected 6 items, got %d", root.Count())
	}
}

func TestInsertTocItemSkippedLevel(t *testing.T) {
	root := &TocItem{Level: -1}
	insertTocItem(root, &TocItem{Title: "deep", Level: 3})
	insertTocItem(root, &TocItem{Title: "top", Level: 0})
	if got := titles(root.Children); got != "deep,top" {
		t.Fatalf("entry deeper than tree must attach where descent stops, got %s", got)
	}
}

const ncx = `<?xml version="1.0"?>
<ncx><head><meta name="dtb:uid" content="x"/></head>
<docTitle><text>Book</text></docTitle>
<navMap>
 <navPoint id="n1"><navLabel><text>Part  One</text></navLabel><content src="Text/doc1.xhtml"/>
  <navPoint><navLabel><text>Chapter 1</text></navLabel><content src="Text/doc1.xhtml#x"/></navPoint>
  <navPoint><navLabel><text>Chapter 2</text></navLabel><content src="Text/doc2.xhtml"/>
   <navPoint><navLabel><text>Section</text></navLabel><content src="Text/doc2.xhtml#x"/></navPoint>
  </navPoint>
  <navPoint><navLabel><text>Chapter 3</text></navLabel><content src="missing.xhtml"/></navPoint>
 </navPoint>
 <navPoint><navLabel><text>Appendix</text></navLabel><content src="https://example.com"/></navPoint>
</navMap>
<pageList><pageTarget><navLabel><text>1</text></navLabel><content src="p1"/></pageTarget></pageList>
</ncx>`

func TestBuildTocTreeNCX(t *testing.T) {
	doc := formatString(t, mergedBook, testConfig(t))
	root := BuildTocTree(markup.TokenizeString(ncx, markup.XML()), doc)
	if root == nil {
		t.Fatal("expected toc")
	}

	if got := titles(root.Children); got != "Part One,Appendix" {
		t.Fatalf("unexpected roots %q", got)
	}
	part := root.Children[0]
	if got := titles(part.Children); got != "Chapter 1,Chapter 2,Chapter 3" {
		t.Fatalf("unexpected chapters %q", got)
	}
	section := part.Children[1].Children[0]
	if section.Title != "Section" || section.Dest == nil || section.Dest.Page != 2 {
		t.Errorf("section should resolve to page 2, got %+v", section.Dest)
	}
	if part.Children[2].Dest != nil {
		t.Errorf("unresolvable entry should keep no destination, got %+v", part.Children[2].Dest)
	}
	if !root.Children[1].Dest.IsExternal() {
		t.Errorf("expected external destination for appendix")
	}
	if !strings.Contains(root.String(), `"Section" -> page 2`) {
		t.Errorf("unexpected dump:\n%s", root)
	}
}

const navDoc = `<html><body>
<nav epub:type="landmarks"><ol><li><a href="cover.xhtml">Cover</a></li></ol></nav>
<nav epub:type="toc"><h1>Contents</h1><ol>
 <li><a href="doc1.xhtml">One</a>
  <ol><li><a href="doc1.xhtml#x"><span>Inner</span> <em>part</em></a></li></ol>
 </li>
 <li><span>Two</span></li>
</ol></nav>
</body></html>`

func TestBuildTocTreeNav(t *testing.T) {
	root := BuildTocTree(markup.TokenizeString(navDoc), nil)
	if root == nil {
		t.Fatal("expected toc")
	}
	if got := titles(root.Children); got != "One,Two" {
		t.Fatalf("unexpected roots %q", got)
	}
	inner := root.Children[0].Children[0]
	if inner.Title != "Inner part" || inner.Target != "doc1.xhtml#x" {
		t.Fatalf("unexpected inner entry %+v", inner)
	}
	if inner.Dest != nil {
		t.Fatal("destination must be deferred without resolver")
	}

	doc := formatString(t, mergedBook, testConfig(t))
	root.Resolve(doc)
	if inner.Dest == nil || inner.Dest.Page != 1 {
		t.Fatalf("expected deferred resolution to page 1, got %+v", inner.Dest)
	}
}

func TestBuildTocTreeInlineMarkup(t *testing.T) {
	for _, tc := range []struct {
		src, want string
	}{
		{`<a href="a.xhtml">Ch<em>apter</em> One</a>`, "Chapter One"},
		{`<a href="a.xhtml"><b>Part</b><i>Two</i></a>`, "PartTwo"},
		{"<a href=\"a.xhtml\">\n  Part\n  <em>Three</em>\n</a>", "Part Three"},
	} {
		t.Run(tc.want, func(t *testing.T) {
			root := BuildTocTree(markup.TokenizeString(`<nav><ol><li>`+tc.src+`</li></ol></nav>`), nil)
			if root == nil || len(root.Children) != 1 {
				t.Fatal("expected single entry")
			}
			if got := root.Children[0].Title; got != tc.want {
				t.Errorf("title %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildTocTreeEmpty(t *testing.T) {
	if root := BuildTocTree(markup.TokenizeString(`<ncx><navMap></navMap></ncx>`), nil); root != nil {
		t.Fatalf("expected nil for empty outline, got %v", root)
	}
}
