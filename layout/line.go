package layout

import (
	"math"
)

// lineBuilder accumulates instructions of the line under construction.
// Horizontal positions are relative to the line start, vertical positions of
// text, spaces and images are relative to the baseline until the line is
// finished.
type lineBuilder struct {
	items   []Instr
	x       float64
	ascent  float64
	descent float64
	margin  float64
	visible bool
}

func (l *lineBuilder) reset() {
	l.items = l.items[:0]
	l.x, l.ascent, l.descent = 0, 0, 0
	l.visible = false
}

// hasContent reports whether line carries anything visible.
func (l *lineBuilder) hasContent() bool {
	return l.visible
}

// add appends instruction at the current position. For text, spaces and
// images asc/desc describe extent around baseline, advance is taken from
// instruction width. Markers (anchors, links, font changes) occupy no space.
func (l *lineBuilder) add(in Instr, asc, desc float64) {
	in.Box.X = l.x
	switch in.Kind {
	case InstrTextRun, InstrImage, InstrElasticSpace, InstrFixedSpace:
		in.Box.Y, in.Box.H = -asc, asc+desc
		l.ascent, l.descent = max(l.ascent, asc), max(l.descent, desc)
		l.x += in.Box.W
		if in.Visible() {
			l.visible = true
		}
	default:
		in.Box.W, in.Box.H = 0, 0
	}
	l.items = append(l.items, in)
}

// dropSpaces removes spaces from a line with no visible content, markers
// stay so they travel with the next line.
func (l *lineBuilder) dropSpaces() {
	kept := l.items[:0]
	for _, in := range l.items {
		if !in.isSpace() {
			in.Box.X = 0
			kept = append(kept, in)
		}
	}
	l.items = kept
	l.x, l.ascent, l.descent = 0, 0, 0
}

// takeMarkers returns markers of a line with no visible content positioned at
// the line start and empties the line.
func (l *lineBuilder) takeMarkers() []Instr {
	var out []Instr
	for _, in := range l.items {
		if in.isSpace() {
			continue
		}
		in.Box = Rect{X: l.margin}
		out = append(out, in)
	}
	l.reset()
	return out
}

// finish produces positioned copy of the line. Trailing spaces are trimmed,
// slack is distributed according to alignment. Last line of a paragraph is
// never stretched. Returned vertical positions are relative to line top.
func (l *lineBuilder) finish(avail float64, align Align, paragraphEnd bool) ([]Instr, float64) {
	last := -1
	for i := range l.items {
		if l.items[i].Visible() {
			last = i
		}
	}

	out := make([]Instr, 0, len(l.items))
	for i, in := range l.items {
		if i > last && in.isSpace() {
			continue
		}
		out = append(out, in)
	}

	var width float64
	if last >= 0 {
		width = l.items[last].Box.Right()
	}
	slack := avail - width

	var shift float64
	switch align {
	case AlignRight:
		shift = slack
	case AlignCenter:
		shift = math.Floor(slack / 2)
	case AlignJustify:
		if !paragraphEnd {
			justify(out, slack)
		}
	}
	shift = max(shift, 0)

	height := l.ascent + l.descent
	for i := range out {
		out[i].Box.X += l.margin + shift
		switch out[i].Kind {
		case InstrTextRun, InstrImage, InstrElasticSpace, InstrFixedSpace:
			out[i].Box.Y += l.ascent
		default:
			out[i].Box.Y, out[i].Box.H = 0, height
		}
	}
	return out, height
}

// justify spreads whole units of slack over elastic spaces. Every space gets
// the same share, remaining units go one by one to the earliest spaces.
// Positions of everything after a widened space move accordingly.
func justify(items []Instr, slack float64) {
	if slack < 1 {
		return
	}
	n := 0
	for i := range items {
		if items[i].Kind == InstrElasticSpace {
			n++
		}
	}
	if n == 0 {
		return
	}

	total := math.Floor(slack)
	per := math.Floor(total / float64(n))
	rem := int(total - per*float64(n))

	var extra float64
	k := 0
	for i := range items {
		items[i].Box.X += extra
		if items[i].Kind != InstrElasticSpace {
			continue
		}
		add := per
		if k < rem {
			add++
		}
		k++
		items[i].Box.W += add
		extra += add
	}
}
