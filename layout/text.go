package layout

import (
	"strings"
	"unicode/utf8"
)

// ExtractText reconstructs readable text of page n together with a rectangle
// for every rune of the result. Separator is inserted between runs which do
// not continue each other visually (next run starts to the left of the end
// of the previous one or below it), a space is inserted where spacing was
// laid out between runs. Runes of separator get empty rectangles.
func (d *Document) ExtractText(n int, sep string) (string, []Rect) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.page(n)

	var (
		sb       strings.Builder
		rects    []Rect
		prev     *Instr
		space    bool
		spaceBox Rect
		sepRunes = utf8.RuneCountInString(sep)
	)
	for i := range p.Instructions {
		in := &p.Instructions[i]
		switch in.Kind {
		case InstrElasticSpace, InstrFixedSpace:
			if prev != nil && !space {
				space, spaceBox = true, in.Box
			}
		case InstrTextRun:
			if prev != nil {
				if in.Box.X+epsilon < prev.Box.Right() || in.Box.Y >= prev.Box.Bottom() {
					sb.WriteString(sep)
					for range sepRunes {
						rects = append(rects, Rect{})
					}
				} else if space {
					sb.WriteByte(' ')
					rects = append(rects, spaceBox)
				}
			}
			space = false
			sb.Write(in.Data)
			rects = d.runeRects(rects, in)
			prev = in
		}
	}
	return sb.String(), rects
}

const epsilon = 0.01

// runeRects appends rectangle of every rune of a text run. Runes are measured
// with document metrics and scaled to the run width (fonts may have been
// updated since layout). Without metrics the width is split evenly.
func (d *Document) runeRects(rects []Rect, in *Instr) []Rect {
	count := utf8.RuneCount(in.Data)
	if count == 0 {
		return rects
	}
	var advances []float64
	if d.metrics != nil && int(in.Font) < len(d.fonts) && in.Font >= 0 {
		if g := d.metrics.Measure(d.fonts[in.Font], in.Data); len(g.Advances) == count {
			if total := g.Width(); total > 0 {
				advances = g.Advances
				for k := range advances {
					advances[k] *= in.Box.W / total
				}
			}
		}
	}
	x := in.Box.X
	for k := range count {
		w := in.Box.W / float64(count)
		if advances != nil {
			w = advances[k]
		}
		rects = append(rects, Rect{X: x, Y: in.Box.Y, W: w, H: in.Box.H})
		x += w
	}
	return rects
}
