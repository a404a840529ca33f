package layout

import (
	"fmt"
	"strings"
)

// FontStyle is a set of font style flags.
type FontStyle uint8

const (
	Bold FontStyle = 1 << iota
	Italic
	Underline
	Strike
)

func (s FontStyle) String() string {
	var parts []string
	if s&Bold != 0 {
		parts = append(parts, "bold")
	}
	if s&Italic != 0 {
		parts = append(parts, "italic")
	}
	if s&Underline != 0 {
		parts = append(parts, "underline")
	}
	if s&Strike != 0 {
		parts = append(parts, "strike")
	}
	if len(parts) == 0 {
		return "regular"
	}
	return strings.Join(parts, "|")
}

// Font describes font used for a text run.
type Font struct {
	Family string
	Size   float64
	Style  FontStyle
}

func (f Font) String() string {
	return fmt.Sprintf("%s %g %s", f.Family, f.Size, f.Style)
}

// FontRef indexes font table of a Document.
type FontRef int

// fontTable interns fonts so instructions can refer to them by index.
type fontTable struct {
	list  []Font
	index map[Font]FontRef
}

func (t *fontTable) intern(f Font) FontRef {
	if ref, ok := t.index[f]; ok {
		return ref
	}
	if t.index == nil {
		t.index = make(map[Font]FontRef)
	}
	ref := FontRef(len(t.list))
	t.list = append(t.list, f)
	t.index[f] = ref
	return ref
}

func (t *fontTable) get(ref FontRef) Font {
	if ref < 0 || int(ref) >= len(t.list) {
		return Font{}
	}
	return t.list[ref]
}
