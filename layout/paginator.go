package layout

// paginator owns vertical cursor and page sequence. Lines are placed whole:
// a line which does not fit below the cursor starts a new page unless the
// page has nothing on it yet, so an element taller than the viewport ends up
// alone on its own page.
type paginator struct {
	height  float64
	pages   []*Page
	cur     *Page
	y       float64
	padding float64 // vertical gap requested before the next line
	link    *Instr  // link open at the cursor
	font    FontRef // font of the last SetFont, -1 before the first one
	resume  bool    // page has no SetFont yet, text must restate the font
	carried int     // leading instructions of cur repeated from the previous page
	reparse int     // reparse index for a page with no own instructions yet
}

func newPaginator(height float64) *paginator {
	return &paginator{height: height, cur: &Page{}, font: -1}
}

// blank reports whether current page holds nothing but instructions carried
// over from the previous page.
func (p *paginator) blank() bool {
	return len(p.cur.Instructions) == p.carried
}

// place puts finished line (vertical positions relative to its top) below
// the cursor.
func (p *paginator) place(items []Instr, height float64) {
	pad := p.padding
	p.padding = 0
	if p.y == 0 {
		pad = 0
	}
	if p.y > 0 && p.y+pad+height > p.height {
		p.seal()
		pad = 0
	}
	top := p.y + pad
	for i := range items {
		items[i].Box.Y += top
		p.append(items[i])
	}
	p.y = top + height
}

// placeMarkers puts zero sized instructions at the cursor without moving it.
func (p *paginator) placeMarkers(items []Instr) {
	y := min(p.y, p.height)
	for i := range items {
		items[i].Box.Y = y
		p.append(items[i])
	}
}

func (p *paginator) append(in Instr) {
	if p.resume && in.Kind == InstrTextRun && p.font >= 0 {
		p.cur.Instructions = append(p.cur.Instructions, Instr{Kind: InstrSetFont, Box: Rect{X: in.Box.X, Y: in.Box.Y}, Font: p.font, Reparse: in.Reparse})
		p.resume = false
	}
	switch in.Kind {
	case InstrLinkStart:
		l := in
		p.link = &l
	case InstrLinkEnd:
		p.link = nil
	case InstrSetFont:
		p.font = in.Font
		p.resume = false
	}
	p.cur.Instructions = append(p.cur.Instructions, in)
}

// gap requests vertical space before the next line. Space is never added at
// the top of a page.
func (p *paginator) gap(dy float64) {
	if p.y > 0 && dy > 0 {
		p.padding += dy
	}
}

// pageBreak starts a new page unless the current one is still blank.
func (p *paginator) pageBreak() {
	if p.y > 0 || !p.cur.IsEmpty() {
		p.seal()
	}
}

// seal moves current page to the output. Link open at this moment is closed
// on the sealed page and reopened on the new one, the reopened link does not
// count for page reparse. First text run of the new page restates the font
// in effect.
func (p *paginator) seal() {
	link := p.link
	if link != nil {
		p.cur.Instructions = append(p.cur.Instructions, Instr{
			Kind:    InstrLinkEnd,
			Box:     Rect{Y: min(p.y, p.height)},
			Reparse: link.Reparse,
		})
	}
	linkBoxes(p.cur.Instructions)
	if p.carried < len(p.cur.Instructions) {
		p.cur.Reparse = p.cur.Instructions[p.carried].Reparse
	} else {
		p.cur.Reparse = p.reparse
	}
	p.pages = append(p.pages, p.cur)

	p.cur, p.y, p.padding, p.link, p.carried = &Page{}, 0, 0, nil, 0
	if link != nil {
		reopened := *link
		reopened.Box = Rect{}
		p.append(reopened)
	}
	p.carried = len(p.cur.Instructions)
	p.resume = true
}

// finish seals last page and returns everything produced.
func (p *paginator) finish() []*Page {
	p.seal()
	// seal reopens dangling link on a fresh page, nothing can follow it
	p.cur = nil
	return p.pages
}

// linkBoxes sets bounding box of every link start to the union of visible
// content up to the matching link end.
func linkBoxes(items []Instr) {
	for i := range items {
		if items[i].Kind != InstrLinkStart {
			continue
		}
		var box Rect
		for j := i + 1; j < len(items) && items[j].Kind != InstrLinkEnd; j++ {
			if items[j].Visible() {
				box = box.Union(items[j].Box)
			}
		}
		if !box.IsEmpty() {
			items[i].Box = box
		}
	}
}
