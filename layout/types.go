// Package layout formats a markup token stream into fixed size pages of
// absolutely positioned draw instructions and answers position queries
// (anchors, links, text, table of contents) against the result.
package layout

import (
	"fmt"
	"strings"
)

// Rect is a bounding box in layout units, Y grows downwards.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Bottom() float64 { return r.Y + r.H }

// IsEmpty reports whether rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.W <= 0 || r.H <= 0
}

// Union returns smallest rectangle containing both. Empty rectangles are
// ignored.
func (r Rect) Union(o Rect) Rect {
	switch {
	case o.IsEmpty():
		return r
	case r.IsEmpty():
		return o
	}
	x, y := min(r.X, o.X), min(r.Y, o.Y)
	return Rect{X: x, Y: y, W: max(r.Right(), o.Right()) - x, H: max(r.Bottom(), o.Bottom()) - y}
}

func (r Rect) String() string {
	return fmt.Sprintf("(%g,%g %gx%g)", r.X, r.Y, r.W, r.H)
}

// InstrKind identifies type of draw instruction.
type InstrKind int

const (
	InstrTextRun InstrKind = iota
	InstrImage
	InstrLine
	InstrElasticSpace
	InstrFixedSpace
	InstrAnchor
	InstrLinkStart
	InstrLinkEnd
	InstrSetFont
)

var instrKindNames = [...]string{
	InstrTextRun:      "text",
	InstrImage:        "image",
	InstrLine:         "line",
	InstrElasticSpace: "elastic-space",
	InstrFixedSpace:   "fixed-space",
	InstrAnchor:       "anchor",
	InstrLinkStart:    "link-start",
	InstrLinkEnd:      "link-end",
	InstrSetFont:      "set-font",
}

func (k InstrKind) String() string {
	if k >= 0 && int(k) < len(instrKindNames) {
		return instrKindNames[k]
	}
	return fmt.Sprintf("InstrKind(%d)", int(k))
}

// Instr is a single positioned draw instruction.
//
// Data holds text of a run, anchor id or raw link target. It always points
// into the arena owned by the Document and must not be modified or retained
// after Document.Close.
type Instr struct {
	Kind    InstrKind
	Box     Rect
	Data    []byte
	Font    FontRef
	Image   *Image
	Base    bool // anchor marks start of a merged sub-document, Data is its path
	Reparse int  // offset in the markup stream where content of instruction began
}

// Visible reports whether instruction puts ink on the page.
func (in *Instr) Visible() bool {
	return in.Kind == InstrTextRun || in.Kind == InstrImage
}

func (in *Instr) isSpace() bool {
	return in.Kind == InstrElasticSpace || in.Kind == InstrFixedSpace
}

// Image is decoded image data supplied by ImageSource. Data is owned by the
// source, layout never modifies it.
type Image struct {
	ID     string
	Format string
	Data   []byte
	Width  int
	Height int
}

// ImageSource resolves image references found in markup. Scope is the path of
// the sub-document currently being formatted (empty for single documents) and
// is used to resolve relative references.
type ImageSource interface {
	LookupImage(ref, scope string) (*Image, bool)
}

// Page is an ordered list of instructions plus reparse index of the first
// one.
type Page struct {
	Instructions []Instr
	Reparse      int
}

// IsEmpty reports whether page has no visible content.
func (p *Page) IsEmpty() bool {
	for i := range p.Instructions {
		if p.Instructions[i].Visible() {
			return false
		}
	}
	return true
}

// Align is horizontal alignment of a line.
type Align int

const (
	AlignJustify Align = iota
	AlignLeft
	AlignRight
	AlignCenter
)

var alignNames = map[Align]string{
	AlignJustify: "justify",
	AlignLeft:    "left",
	AlignRight:   "right",
	AlignCenter:  "center",
}

func (a Align) String() string {
	if s, ok := alignNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Align(%d)", int(a))
}

// ParseAlign converts alignment name (as used in markup "align" attributes
// and "text-align" property) into Align.
func ParseAlign(name string) (Align, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "justify":
		return AlignJustify, nil
	case "left", "start":
		return AlignLeft, nil
	case "right", "end":
		return AlignRight, nil
	case "center", "middle":
		return AlignCenter, nil
	}
	return AlignJustify, fmt.Errorf("%s is not a valid alignment", name)
}
