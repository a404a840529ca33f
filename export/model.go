// Package export serializes formatted documents: pages of positioned
// instructions, the anchor table and the table of contents.
package export

import (
	"reflow/layout"
)

// Info identifies the exported book.
type Info struct {
	ID       string   `ion:"id" json:"id" yaml:"id"`
	Title    string   `ion:"title" json:"title" yaml:"title"`
	Authors  []string `ion:"authors,omitempty" json:"authors,omitempty" yaml:"authors,omitempty"`
	Language string   `ion:"language,omitempty" json:"language,omitempty" yaml:"language,omitempty"`
	Source   string   `ion:"source,omitempty" json:"source,omitempty" yaml:"source,omitempty"`
}

type Box struct {
	X float64 `ion:"x" json:"x" yaml:"x"`
	Y float64 `ion:"y" json:"y" yaml:"y"`
	W float64 `ion:"w" json:"w" yaml:"w"`
	H float64 `ion:"h" json:"h" yaml:"h"`
}

type Font struct {
	Family string  `ion:"family" json:"family" yaml:"family"`
	Size   float64 `ion:"size" json:"size" yaml:"size"`
	Style  string  `ion:"style" json:"style" yaml:"style"`
}

type Instr struct {
	Kind    string `ion:"kind" json:"kind" yaml:"kind"`
	Box     Box    `ion:"box" json:"box" yaml:"box"`
	Text    string `ion:"text,omitempty" json:"text,omitempty" yaml:"text,omitempty"`
	Font    int    `ion:"font" json:"font" yaml:"font"`
	Image   string `ion:"image,omitempty" json:"image,omitempty" yaml:"image,omitempty"`
	Base    bool   `ion:"base,omitempty" json:"base,omitempty" yaml:"base,omitempty"`
	Reparse int    `ion:"reparse" json:"reparse" yaml:"reparse"`
}

type Page struct {
	Number       int     `ion:"number" json:"number" yaml:"number"`
	Reparse      int     `ion:"reparse" json:"reparse" yaml:"reparse"`
	Base         string  `ion:"base,omitempty" json:"base,omitempty" yaml:"base,omitempty"`
	Instructions []Instr `ion:"instructions" json:"instructions" yaml:"instructions"`
}

type Anchor struct {
	ID     string `ion:"id" json:"id" yaml:"id"`
	Page   int    `ion:"page" json:"page" yaml:"page"`
	Base   string `ion:"base,omitempty" json:"base,omitempty" yaml:"base,omitempty"`
	Box    Box    `ion:"box" json:"box" yaml:"box"`
	IsBase bool   `ion:"is_base,omitempty" json:"is_base,omitempty" yaml:"is_base,omitempty"`
}

// TocEntry is a table of contents entry, Page is 0 when target was not
// resolved.
type TocEntry struct {
	Title    string     `ion:"title" json:"title" yaml:"title"`
	Target   string     `ion:"target,omitempty" json:"target,omitempty" yaml:"target,omitempty"`
	Page     int        `ion:"page,omitempty" json:"page,omitempty" yaml:"page,omitempty"`
	URL      string     `ion:"url,omitempty" json:"url,omitempty" yaml:"url,omitempty"`
	Children []TocEntry `ion:"children,omitempty" json:"children,omitempty" yaml:"children,omitempty"`
}

// Model is a detached snapshot of a formatted document, it stays valid after
// the document is closed.
type Model struct {
	Book    Info       `ion:"book" json:"book" yaml:"book"`
	Partial bool       `ion:"partial,omitempty" json:"partial,omitempty" yaml:"partial,omitempty"`
	Fonts   []Font     `ion:"fonts" json:"fonts" yaml:"fonts"`
	Pages   []Page     `ion:"pages" json:"pages" yaml:"pages"`
	Anchors []Anchor   `ion:"anchors,omitempty" json:"anchors,omitempty" yaml:"anchors,omitempty"`
	Toc     []TocEntry `ion:"toc,omitempty" json:"toc,omitempty" yaml:"toc,omitempty"`
}

func boxOf(r layout.Rect) Box {
	return Box{X: r.X, Y: r.Y, W: r.W, H: r.H}
}

// NewModel copies document content into a model. Spaces and font switches
// are kept so the model describes page exactly as formatter left it.
func NewModel(doc *layout.Document, info Info, toc *layout.TocItem) *Model {
	m := &Model{Book: info, Partial: doc.Partial()}

	for _, f := range doc.Fonts() {
		m.Fonts = append(m.Fonts, Font{Family: f.Family, Size: f.Size, Style: f.Style.String()})
	}

	for n := 1; n <= doc.PageCount(); n++ {
		m.Pages = append(m.Pages, PageOf(doc, n))
	}

	for _, a := range doc.Anchors() {
		m.Anchors = append(m.Anchors, Anchor{ID: a.ID, Page: a.Page, Base: a.Base, Box: boxOf(a.Box), IsBase: a.IsBase})
	}

	m.Toc = TocOf(toc)
	return m
}

// PageOf copies page n of the document.
func PageOf(doc *layout.Document, n int) Page {
	p := doc.Page(n)
	page := Page{Number: n, Reparse: p.Reparse, Base: doc.Base(n), Instructions: make([]Instr, 0, len(p.Instructions))}
	for _, in := range p.Instructions {
		out := Instr{Kind: in.Kind.String(), Box: boxOf(in.Box), Font: int(in.Font), Base: in.Base, Reparse: in.Reparse}
		switch in.Kind {
		case layout.InstrTextRun, layout.InstrAnchor, layout.InstrLinkStart:
			out.Text = string(in.Data)
		case layout.InstrImage:
			if in.Image != nil {
				out.Image = in.Image.ID
			}
		}
		page.Instructions = append(page.Instructions, out)
	}
	return page
}

// TocOf copies table of contents, nil toc gives nil.
func TocOf(toc *layout.TocItem) []TocEntry {
	if toc == nil {
		return nil
	}
	return tocEntries(toc.Children)
}

func tocEntries(items []*layout.TocItem) []TocEntry {
	if len(items) == 0 {
		return nil
	}
	out := make([]TocEntry, 0, len(items))
	for _, item := range items {
		e := TocEntry{Title: item.Title, Target: item.Target, Children: tocEntries(item.Children)}
		switch {
		case item.Dest.IsExternal():
			e.URL = item.Dest.URL
		case item.Dest != nil:
			e.Page = item.Dest.Page
		}
		out = append(out, e)
	}
	return out
}
